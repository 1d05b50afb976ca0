package pagination

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	// DefaultPage is used when the caller does not ask for a page.
	DefaultPage = 1
	// MaxPerPage bounds the page size a caller may request.
	MaxPerPage = 100
)

// Params describes one page window. Offset is derived from Page and PerPage.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// Limit returns the maximum number of items in the window.
func (p Params) Limit() int {
	return p.PerPage
}

// New validates page and perPage and computes the offset.
// Zero and negative values are rejected rather than clamped.
func New(page, perPage int) (Params, error) {
	if page < 1 {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page must be a positive integer, got %d", page))
	}
	if perPage < 1 {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page size must be a positive integer, got %d", perPage))
	}
	if perPage > MaxPerPage {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page size must not exceed %d, got %d", MaxPerPage, perPage))
	}

	return Params{
		Page:    page,
		PerPage: perPage,
		Offset:  perPage * (page - 1),
	}, nil
}

// Parse builds Params from raw query values. Empty values fall back to the
// defaults; anything else must be a positive integer.
func Parse(page, perPage string, defaultPerPage int) (Params, error) {
	p, err := parsePositive("page", page, DefaultPage)
	if err != nil {
		return Params{}, err
	}
	size, err := parsePositive("page size", perPage, defaultPerPage)
	if err != nil {
		return Params{}, err
	}
	return New(p, size)
}

// FromRequest reads the page and page size query parameters from r.
func FromRequest(r *http.Request, pageKey, sizeKey string, defaultPerPage int) (Params, error) {
	q := r.URL.Query()
	return Parse(q.Get(pageKey), q.Get(sizeKey), defaultPerPage)
}

// TotalPages returns ceil(total / perPage), or zero when total is zero.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	return pages
}

func parsePositive(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return v, nil
}

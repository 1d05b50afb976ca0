// Package query turns raw product search parameters into a backend
// neutral predicate set and ordering.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// PriceRange is an inclusive price interval.
type PriceRange struct {
	Low  float64
	High float64
}

// Filter is the set of predicates a product must satisfy. Zero-valued
// fields impose no constraint; set fields combine with AND.
type Filter struct {
	// Term matches names containing it, ignoring case. Metacharacters
	// have no special meaning.
	Term      string
	Category  string
	MinRating *float64
	Price     *PriceRange
}

// BuildFilter parses the filter parameters of q. Malformed price ranges and
// rating floors are rejected with an invalid input error rather than
// silently matching nothing.
func BuildFilter(q domain.SearchQuery) (Filter, error) {
	var f Filter

	if present(q.Query) {
		f.Term = strings.TrimSpace(q.Query)
	}
	if present(q.Category) {
		f.Category = q.Category
	}
	if present(q.Rating) {
		floor, err := parseNumber(q.Rating)
		if err != nil || floor < 0 || floor > 5 {
			return Filter{}, apperrors.InvalidInput(fmt.Sprintf("rating must be a number between 0 and 5, got %q", q.Rating))
		}
		f.MinRating = &floor
	}
	if present(q.Price) {
		pr, err := ParsePriceRange(q.Price)
		if err != nil {
			return Filter{}, err
		}
		f.Price = &pr
	}
	return f, nil
}

// present reports whether v constrains the search. Only the exact
// lower-case wildcard disables a filter; "ALL" is an ordinary term.
func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != domain.Wildcard
}

// ParsePriceRange parses "<low>-<high>" with 0 <= low <= high.
func ParsePriceRange(raw string) (PriceRange, error) {
	invalid := apperrors.InvalidInput(fmt.Sprintf("price must look like <low>-<high>, got %q", raw))

	lowRaw, highRaw, ok := strings.Cut(raw, "-")
	if !ok || strings.Contains(highRaw, "-") {
		return PriceRange{}, invalid
	}
	low, err := parseNumber(lowRaw)
	if err != nil {
		return PriceRange{}, invalid
	}
	high, err := parseNumber(highRaw)
	if err != nil {
		return PriceRange{}, invalid
	}
	if low > high {
		return PriceRange{}, apperrors.InvalidInput(fmt.Sprintf("price range %q has low above high", raw))
	}
	return PriceRange{Low: low, High: high}, nil
}

// parseNumber accepts finite, non-negative decimals only.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("number out of range: %s", s)
	}
	return v, nil
}

// Match evaluates the filter against p in memory.
func (f Filter) Match(p *domain.Product) bool {
	if f.Term != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Term)) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinRating != nil && p.Rating < *f.MinRating {
		return false
	}
	if f.Price != nil && (p.Price < f.Price.Low || p.Price > f.Price.High) {
		return false
	}
	return true
}

// IsEmpty reports whether the filter matches every product.
func (f Filter) IsEmpty() bool {
	return f.Term == "" && f.Category == "" && f.MinRating == nil && f.Price == nil
}

// Key is a canonical encoding of the filter, stable across equivalent
// queries, for use in cache keys.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strings.ToLower(f.Term))
	b.WriteString("|c=")
	b.WriteString(f.Category)
	b.WriteString("|r=")
	if f.MinRating != nil {
		b.WriteString(strconv.FormatFloat(*f.MinRating, 'g', -1, 64))
	}
	b.WriteString("|p=")
	if f.Price != nil {
		b.WriteString(strconv.FormatFloat(f.Price.Low, 'g', -1, 64))
		b.WriteByte('-')
		b.WriteString(strconv.FormatFloat(f.Price.High, 'g', -1, 64))
	}
	return b.String()
}

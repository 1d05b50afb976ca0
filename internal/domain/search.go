package domain

// Wildcard disables a search filter.
const Wildcard = "all"

// Sort tokens accepted by product search.
const (
	SortFeatured = "featured"
	SortLowest   = "lowest"
	SortHighest  = "highest"
	SortTopRated = "toprated"
	SortNewest   = "newest"
)

// SearchQuery carries the raw search parameters exactly as received.
// Empty strings mean "not supplied".
type SearchQuery struct {
	Page     string
	PageSize string
	Category string
	Price    string
	Rating   string
	Order    string
	Query    string
}

// SearchResult is one page of matching products.
type SearchResult struct {
	Products      []Product `json:"products"`
	CountProducts int64     `json:"countProducts"`
	Page          int       `json:"page"`
	Pages         int       `json:"pages"`
}

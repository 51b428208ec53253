package api

import (
	"github.com/starford/coursesync/internal/catalog"
	"github.com/starford/coursesync/internal/index"
)

// ResourceDetail is the full resource response type (aliased from the domain layer).
type ResourceDetail = catalog.ResourceDetail

// ResourceListItem is one catalog row in a list response.
type ResourceListItem = index.Row

// ResourceListResponse wraps paginated resource listings.
type ResourceListResponse struct {
	Resources []ResourceListItem `json:"resources" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// CategoriesResponse lists the resource types.
type CategoriesResponse struct {
	Categories []catalog.CategoryInfo `json:"categories" validate:"required"`
}

// IdentifierResponse is a parsed identifier.
type IdentifierResponse = catalog.IdentifierInfo

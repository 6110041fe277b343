package handlers

import (
	"context"

	"github.com/cellarlog/cellarlog/internal/repository"
	"github.com/cellarlog/cellarlog/internal/service"
)

// SearchHandler handles tasting note search endpoints.
type SearchHandler struct {
	searchSvc *service.SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchSvc *service.SearchService) *SearchHandler {
	return &SearchHandler{searchSvc: searchSvc}
}

// SearchInput represents search query parameters.
type SearchInput struct {
	Query       string `query:"q" doc:"Full-text query over note content"`
	ScoreMin    int    `query:"score_min" minimum:"0" maximum:"100" doc:"Minimum total score"`
	ScoreMax    int    `query:"score_max" minimum:"0" maximum:"100" doc:"Maximum total score"`
	Region      string `query:"region" doc:"Exact region filter"`
	Country     string `query:"country" doc:"Exact country filter"`
	Grape       string `query:"grape" doc:"Grape variety filter"`
	Producer    string `query:"producer" doc:"Exact producer filter"`
	VintageMin  int    `query:"vintage_min" doc:"Earliest vintage year"`
	VintageMax  int    `query:"vintage_max" doc:"Latest vintage year"`
	DrinkOrHold string `query:"drink_or_hold" enum:"drink,hold,unsure," doc:"Readiness filter"`
	Status      string `query:"status" doc:"Lifecycle status (default published, \"all\" disables)"`
	Limit       int    `query:"limit" minimum:"0" maximum:"200" doc:"Page size (default 50)"`
	Offset      int    `query:"offset" minimum:"0" doc:"Page offset"`
}

// SearchOutput represents the search response.
type SearchOutput struct {
	Body repository.SearchResult
}

// Search runs a full-text and filtered search over tasting notes.
func (h *SearchHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	filters := repository.SearchFilters{
		Query:       input.Query,
		Region:      input.Region,
		Country:     input.Country,
		Grape:       input.Grape,
		Producer:    input.Producer,
		DrinkOrHold: input.DrinkOrHold,
		Status:      input.Status,
	}
	// Zero query values mean "no bound"
	if input.ScoreMin > 0 {
		filters.ScoreMin = &input.ScoreMin
	}
	if input.ScoreMax > 0 {
		filters.ScoreMax = &input.ScoreMax
	}
	if input.VintageMin > 0 {
		filters.VintageMin = &input.VintageMin
	}
	if input.VintageMax > 0 {
		filters.VintageMax = &input.VintageMax
	}

	result, err := h.searchSvc.Search(ctx, filters, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &SearchOutput{Body: *result}, nil
}

// FilterOptionsOutput represents the filter options response.
type FilterOptionsOutput struct {
	Body repository.FilterOptions
}

// FilterOptions returns the distinct values available for search
// filters.
func (h *SearchHandler) FilterOptions(ctx context.Context, input *struct{}) (*FilterOptionsOutput, error) {
	options, err := h.searchSvc.FilterOptions(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &FilterOptionsOutput{Body: *options}, nil
}

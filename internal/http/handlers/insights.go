package handlers

import (
	"context"

	"github.com/cellarlog/cellarlog/internal/repository"
	"github.com/cellarlog/cellarlog/internal/service"
)

// InsightsHandler handles scoring analytics endpoints.
type InsightsHandler struct {
	calibrationSvc *service.CalibrationService
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(calibrationSvc *service.CalibrationService) *InsightsHandler {
	return &InsightsHandler{calibrationSvc: calibrationSvc}
}

// PersonalStatsOutput represents the personal statistics response.
type PersonalStatsOutput struct {
	Body repository.PersonalStats
}

// PersonalStats returns all-time and current-month scoring statistics.
func (h *InsightsHandler) PersonalStats(ctx context.Context, input *struct{}) (*PersonalStatsOutput, error) {
	stats, err := h.calibrationSvc.PersonalStats(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &PersonalStatsOutput{Body: *stats}, nil
}

// ConsistencyOutput represents the score consistency response.
type ConsistencyOutput struct {
	Body repository.ScoreConsistency
}

// Consistency reports score spread overall and per region/country.
func (h *InsightsHandler) Consistency(ctx context.Context, input *struct{}) (*ConsistencyOutput, error) {
	consistency, err := h.calibrationSvc.ScoreConsistency(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &ConsistencyOutput{Body: *consistency}, nil
}

// TrendsInput represents trend query parameters.
type TrendsInput struct {
	Period string `query:"period" enum:"month,year," doc:"Bucket size (default month)"`
}

// TrendsOutput represents the scoring trends response.
type TrendsOutput struct {
	Body struct {
		Points []*repository.ScoringTrendPoint `json:"points"`
	}
}

// Trends returns scoring activity bucketed over time.
func (h *InsightsHandler) Trends(ctx context.Context, input *TrendsInput) (*TrendsOutput, error) {
	points, err := h.calibrationSvc.ScoringTrends(ctx, input.Period)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &TrendsOutput{}
	out.Body.Points = points
	return out, nil
}

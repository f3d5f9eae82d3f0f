package api

import (
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/maintenance"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/rename"
)

// ResolveRequest is the request body for applying missing-reference
// decisions: broken name → target asset display name.
type ResolveRequest struct {
	Decisions map[string]string `json:"decisions" validate:"required"`
}

// ExecuteRequest is the request body for executing previously proposed plans.
type ExecuteRequest struct {
	Plans []*rename.Plan `json:"plans" validate:"required"`
}

// AssetListResponse wraps the indexed assets.
type AssetListResponse struct {
	Assets     []models.Asset `json:"assets" validate:"required"`
	Total      int            `json:"total" example:"42" validate:"required"`
	Generation uint64         `json:"generation" example:"3" validate:"required"`
}

// ChangesResponse wraps sanitization proposals.
type ChangesResponse struct {
	Plans      []*rename.Plan `json:"plans" validate:"required"`
	Generation uint64         `json:"generation" example:"3" validate:"required"`
}

// ReportResponse wraps per-plan execution results.
type ReportResponse struct {
	Results []*rename.Result `json:"results" validate:"required"`
}

// MissingResponse wraps missing-reference groups with their candidates.
type MissingResponse struct {
	Missing []maintenance.MissingReference `json:"missing" validate:"required"`
}

// AutoResolveResponse reports applied decisions and the names left for
// manual selection.
type AutoResolveResponse struct {
	Results   []*rename.Result               `json:"results" validate:"required"`
	Ambiguous []maintenance.MissingReference `json:"ambiguous" validate:"required"`
}

// HistoryListResponse wraps a paginated history listing.
type HistoryListResponse struct {
	Records []models.HistoryRecord `json:"records" validate:"required"`
	Total   int                    `json:"total" example:"128" validate:"required"`
}

// SearchResponse wraps prompt search hits.
type SearchResponse struct {
	Results []history.SearchResult `json:"results" validate:"required"`
}

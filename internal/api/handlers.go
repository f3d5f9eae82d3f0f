package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/maintenance"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/rename"
	"github.com/starford/raido/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *maintenance.Service
	hist   history.Store
	index  *library.Index
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when SSE is disabled.
func NewHandler(svc *maintenance.Service, hist history.Store, ix *library.Index, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, hist: hist, index: ix, broker: broker}
}

// ListAssets handles GET /api/assets.
//
//	@Summary		List indexed assets with optional kind filter
//	@Tags			assets
//	@Produce		json
//	@Param			kind	query		string	false	"Filter by kind"	Enums(lora, embedding, other)
//	@Success		200		{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	assets := h.index.All()
	if kind != "" {
		filtered := assets[:0]
		for _, a := range assets {
			if string(a.Kind) == kind {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	writeJSON(w, http.StatusOK, AssetListResponse{
		Assets:     assets,
		Total:      len(assets),
		Generation: h.index.Generation(),
	})
}

// Rescan handles POST /api/scan.
//
//	@Summary		Rebuild the library index from the filesystem
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rescan(r.Context()); err != nil {
		slog.Error("rescan failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	assets := h.index.All()
	writeJSON(w, http.StatusOK, AssetListResponse{
		Assets:     assets,
		Total:      len(assets),
		Generation: h.index.Generation(),
	})
}

// Changes handles GET /api/changes.
//
//	@Summary		List sanitization rename proposals
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	ChangesResponse
//	@Security		BearerAuth
//	@Router			/changes [get]
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ScanForChanges(r.Context())
	if err != nil {
		slog.Error("scan for changes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if plans == nil {
		plans = []*rename.Plan{}
	}
	writeJSON(w, http.StatusOK, ChangesResponse{Plans: plans, Generation: h.index.Generation()})
}

// Sanitize handles POST /api/sanitize.
//
//	@Summary		Derive and execute every sanitization rename in one run
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	ReportResponse
//	@Security		BearerAuth
//	@Router			/sanitize [post]
func (h *Handler) Sanitize(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.SanitizeLibrary(r.Context())
	if err != nil {
		slog.Error("sanitize failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.publishResults(results)
	writeJSON(w, http.StatusOK, ReportResponse{Results: results})
}

// Execute handles POST /api/execute: apply previously proposed plans.
//
//	@Summary		Execute rename plans
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExecuteRequest	true	"Plans to execute"
//	@Success		200		{object}	ReportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/execute [post]
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Plans) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("plans are required"))
		return
	}
	results := h.svc.ExecuteBatch(r.Context(), req.Plans)
	h.publishResults(results)
	writeJSON(w, http.StatusOK, ReportResponse{Results: results})
}

// Missing handles GET /api/missing.
//
//	@Summary		List history references that fail to resolve against the index
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	MissingResponse
//	@Security		BearerAuth
//	@Router			/missing [get]
func (h *Handler) Missing(w http.ResponseWriter, r *http.Request) {
	missing, err := h.svc.MissingReferences(r.Context())
	if err != nil {
		slog.Error("missing references failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if missing == nil {
		missing = []maintenance.MissingReference{}
	}
	writeJSON(w, http.StatusOK, MissingResponse{Missing: missing})
}

// Resolve handles POST /api/resolve: apply explicit decisions.
//
//	@Summary		Apply broken-name decisions as history-only renames
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResolveRequest	true	"Decisions to apply"
//	@Success		200		{object}	ReportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Decisions) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("decisions are required"))
		return
	}
	results, err := h.svc.ResolveMissing(r.Context(), req.Decisions)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("target asset not found"))
		} else {
			slog.Error("resolve failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publishResults(results)
	writeJSON(w, http.StatusOK, ReportResponse{Results: results})
}

// AutoResolve handles POST /api/resolve/auto.
//
//	@Summary		Apply every missing reference whose top candidate clears the auto-accept threshold
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	AutoResolveResponse
//	@Security		BearerAuth
//	@Router			/resolve/auto [post]
func (h *Handler) AutoResolve(w http.ResponseWriter, r *http.Request) {
	results, ambiguous, err := h.svc.AutoResolve(r.Context())
	if err != nil {
		slog.Error("auto-resolve failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []*rename.Result{}
	}
	if ambiguous == nil {
		ambiguous = []maintenance.MissingReference{}
	}
	h.publishResults(results)
	writeJSON(w, http.StatusOK, AutoResolveResponse{Results: results, Ambiguous: ambiguous})
}

// ListHistory handles GET /api/history.
//
//	@Summary		List history records with pagination and optional filters
//	@Tags			history
//	@Produce		json
//	@Param			page		query		int		false	"Page number (1-based)"
//	@Param			page_size	query		int		false	"Page size"
//	@Param			model		query		string	false	"Filter by model id"
//	@Param			search		query		string	false	"Substring filter on prompt text"
//	@Success		200			{object}	HistoryListResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	recs, total, err := h.hist.ListPage(page, pageSize, q.Get("model"), q.Get("search"))
	if err != nil {
		slog.Error("list history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if recs == nil {
		recs = []models.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryListResponse{Records: recs, Total: total})
}

// SearchHistory handles GET /api/history/search.
//
//	@Summary		Full-text search across history prompts
//	@Tags			history
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/search [get]
func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.hist.Search(q, limit)
	if err != nil {
		slog.Error("history search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []history.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (h *Handler) publishResults(results []*rename.Result) {
	if h.broker == nil {
		return
	}
	for _, res := range results {
		switch res.State {
		case rename.StateCommitted:
			h.broker.PublishPlanEvent("committed", res.Plan.OldName, res.Plan.NewName)
		case rename.StateRolledBack:
			h.broker.PublishPlanEvent("rolledback", res.Plan.OldName, res.Plan.NewName)
		}
	}
}

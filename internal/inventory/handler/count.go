package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/httputil"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
)

// CountHandler handles count, area, item and reconciliation endpoints
type CountHandler struct {
	counts     *service.CountService
	reconciler *service.Reconciler
	logger     *logger.Logger
}

// NewCountHandler creates a new count handler
func NewCountHandler(counts *service.CountService, reconciler *service.Reconciler, log *logger.Logger) *CountHandler {
	return &CountHandler{
		counts:     counts,
		reconciler: reconciler,
		logger:     log,
	}
}

// Count handlers

func (h *CountHandler) CreateCount(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCountRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	count, err := h.counts.CreateCount(r.Context(), actor.FromContext(r.Context()), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, count)
}

func (h *CountHandler) ListCounts(w http.ResponseWriter, r *http.Request) {
	filter := repository.CountFilter{
		LocationID: r.URL.Query().Get("location_id"),
		Status:     repository.CountStatus(r.URL.Query().Get("status")),
	}

	counts, err := h.counts.ListCounts(r.Context(), actor.FromContext(r.Context()), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, counts, &httputil.Meta{Total: int64(len(counts))})
}

func (h *CountHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.counts.GetCount(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, count)
}

func (h *CountHandler) DeleteCount(w http.ResponseWriter, r *http.Request) {
	if err := h.counts.DeleteCount(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *CountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var update service.StatusUpdate
	if err := httputil.DecodeAndValidate(r, &update); err != nil {
		httputil.Error(w, err)
		return
	}

	count, err := h.counts.UpdateCountStatus(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"), update)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, count)
}

// Approve locks the count and applies it. When the approval committed but
// the application could not run, the approval is returned with the error.
func (h *CountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	result, err := h.counts.ApproveCount(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"))
	switch {
	case err != nil && result == nil:
		httputil.Error(w, err)
	case err != nil:
		h.logger.Warn().Err(err).Str("count_id", result.Count.ID).Msg("count approved but not applied")
		httputil.Partial(w, result, err)
	default:
		httputil.JSON(w, http.StatusOK, result)
	}
}

type reapplyRequest struct {
	ProductIDs []string `json:"product_ids" validate:"dive,required"`
}

// Reapply applies an approved count again, optionally only for product_ids
func (h *CountHandler) Reapply(w http.ResponseWriter, r *http.Request) {
	var req reapplyRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeAndValidate(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	result, err := h.reconciler.Reapply(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"), req.ProductIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

func (h *CountHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.counts.CountReport(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, report)
}

// Area handlers

func (h *CountHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.counts.ListAreas(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, areas)
}

func (h *CountHandler) AddArea(w http.ResponseWriter, r *http.Request) {
	var req service.AreaRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	area, err := h.counts.AddArea(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, area)
}

type reorderRequest struct {
	AreaIDs []string `json:"area_ids" validate:"required,dive,required"`
}

func (h *CountHandler) ReorderAreas(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	areas, err := h.counts.ReorderAreas(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "countID"), req.AreaIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, areas)
}

func (h *CountHandler) UpdateArea(w http.ResponseWriter, r *http.Request) {
	var update service.AreaUpdate
	if err := httputil.DecodeAndValidate(r, &update); err != nil {
		httputil.Error(w, err)
		return
	}

	area, err := h.counts.UpdateArea(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "areaID"), update)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, area)
}

func (h *CountHandler) DeleteArea(w http.ResponseWriter, r *http.Request) {
	if err := h.counts.DeleteArea(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "areaID")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// Item handlers

func (h *CountHandler) SubmitItem(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitItemRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.counts.SubmitItem(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "areaID"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *CountHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.counts.DeleteItem(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "itemID")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/httputil"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
)

// maxMovements caps a single movement log page
const maxMovements = 500

// LocationLister lists the locations an actor can see
type LocationLister interface {
	AccessibleLocationIDs(ctx context.Context, a *actor.Actor) ([]string, error)
}

// LedgerHandler handles stock level, transfer, adjustment and movement endpoints
type LedgerHandler struct {
	ledger    *service.LedgerService
	locations LocationLister
	logger    *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledger *service.LedgerService, locations LocationLister, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		locations: locations,
		logger:    log,
	}
}

// ListLocations returns the ids of every location the caller can access
func (h *LedgerHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	ids, err := h.locations.AccessibleLocationIDs(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string][]string{"location_ids": ids})
}

// ListLevels lists the stock rows of a location. below_minimum=true limits
// the list to rows under par.
func (h *LedgerHandler) ListLevels(w http.ResponseWriter, r *http.Request) {
	a := actor.FromContext(r.Context())
	locationID := r.URL.Query().Get("location_id")

	var items []repository.InventoryItem
	var err error
	if r.URL.Query().Get("below_minimum") == "true" {
		items, err = h.ledger.ListBelowMinimum(r.Context(), a, locationID)
	} else {
		items, err = h.ledger.ListLevels(r.Context(), a, locationID)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{Total: int64(len(items))})
}

func (h *LedgerHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	item, err := h.ledger.GetLevel(r.Context(), actor.FromContext(r.Context()),
		chi.URLParam(r, "productID"), chi.URLParam(r, "locationID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *LedgerHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	var update service.LevelUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.ledger.SetLevel(r.Context(), actor.FromContext(r.Context()),
		chi.URLParam(r, "productID"), chi.URLParam(r, "locationID"), update)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req service.TransferRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.ledger.Transfer(r.Context(), actor.FromContext(r.Context()), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, movement)
}

func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.ledger.Adjust(r.Context(), actor.FromContext(r.Context()), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, movement)
}

// ListMovements returns the movement log of a location, newest first.
// Optional filters: product_id, type, since (RFC 3339) and limit.
func (h *LedgerHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.MovementFilter{
		LocationID: q.Get("location_id"),
		ProductID:  q.Get("product_id"),
		Type:       repository.MovementType(q.Get("type")),
		Limit:      maxMovements,
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("since must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.Error(w, errors.BadRequest("limit must be a positive integer"))
			return
		}
		if limit < maxMovements {
			filter.Limit = limit
		}
	}

	movements, err := h.ledger.ListMovements(r.Context(), actor.FromContext(r.Context()), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{
		Limit: filter.Limit,
		Total: int64(len(movements)),
	})
}

package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarcount/cellarcount-backend/internal/access"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/handler"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository/memory"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/httputil"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

const (
	org    = "org-harbour"
	bar    = "loc-bar"
	cellar = "loc-cellar"
	gin    = "prod-gin"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
}

type tokens map[string]*actor.Actor

func (t tokens) Actor(token string) (*actor.Actor, error) {
	if a, ok := t[token]; ok {
		return a, nil
	}
	return nil, errors.TokenInvalid()
}

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.Nop()

	store := memory.New()
	store.AddLocation(org, bar)
	store.AddLocation(org, cellar)
	store.AddProduct(org, gin, decimal.RequireFromString("18.50"))
	store.Assign("user-barback", bar, permissions.Flags{CanRead: true, CanWrite: true})

	gate := access.NewGate(store, permissions.NewRoleTable([]string{"owner"}), log)
	retry := database.RetryPolicy{MaxRetries: 3}
	ledger := service.NewLedgerService(store, gate, nil, retry, log)
	reconciler := service.NewReconciler(store, gate, nil, retry, log)
	counts := service.NewCountService(store, gate, store, reconciler, nil, service.DefaultVariancePolicy(), retry, log)

	verifier := tokens{
		"owner":   {ID: "user-owner", OrganizationID: org, Role: "owner"},
		"barback": {ID: "user-barback", OrganizationID: org, Role: "staff"},
	}

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(httputil.Recoverer(log))
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(httputil.Authenticate(verifier))
		handler.Mount(r,
			handler.NewLedgerHandler(ledger, gate, log),
			handler.NewCountHandler(counts, reconciler, log),
		)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &api{t: t, server: server}
}

func (a *api) do(method, path, token string, body interface{}, out interface{}) (int, *envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+"/api/v1/inventory"+path, reader)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, &env
}

func TestLedgerEndpoints(t *testing.T) {
	a := newAPI(t)

	status, _ := a.do(http.MethodPut, "/levels/"+gin+"/"+cellar, "owner", map[string]string{"quantity": "10"}, nil)
	require.Equal(t, http.StatusOK, status)

	var movement repository.StockMovement
	status, _ = a.do(http.MethodPost, "/transfers", "owner", map[string]string{
		"product_id":       gin,
		"from_location_id": cellar,
		"to_location_id":   bar,
		"quantity":         "6",
	}, &movement)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, repository.MovementTransfer, movement.Type)
	assert.Equal(t, "4", movement.QuantityAfter.String())

	var level repository.InventoryItem
	status, _ = a.do(http.MethodGet, "/levels/"+gin+"/"+bar, "barback", nil, &level)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "6", level.CurrentQuantity.String())

	status, env := a.do(http.MethodPost, "/transfers", "owner", map[string]string{
		"product_id":       gin,
		"from_location_id": cellar,
		"to_location_id":   bar,
		"quantity":         "5",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(t, "4", env.Error.Details["available"])

	var waste repository.StockMovement
	status, _ = a.do(http.MethodPost, "/adjustments", "barback", map[string]string{
		"product_id":  gin,
		"location_id": bar,
		"delta":       "-0.5",
		"reason_code": service.ReasonWaste,
	}, &waste)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, repository.MovementWaste, waste.Type)

	var movements []repository.StockMovement
	status, _ = a.do(http.MethodGet, "/movements?location_id="+bar+"&limit=10", "barback", nil, &movements)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, movements, 2)

	status, env = a.do(http.MethodGet, "/movements?location_id="+bar+"&since=yesterday", "barback", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestLedgerEndpoints_AccessAndValidation(t *testing.T) {
	a := newAPI(t)

	status, env := a.do(http.MethodGet, "/levels?location_id="+bar, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = a.do(http.MethodGet, "/levels?location_id="+cellar, "barback", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", env.Error.Code)

	status, env = a.do(http.MethodPost, "/transfers", "owner", map[string]string{"quantity": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "product_id")

	var locations map[string][]string
	status, _ = a.do(http.MethodGet, "/locations", "barback", nil, &locations)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{bar}, locations["location_ids"])
}

func TestCountEndpoints(t *testing.T) {
	a := newAPI(t)
	status, _ := a.do(http.MethodPut, "/levels/"+gin+"/"+bar, "owner", map[string]string{"quantity": "3"}, nil)
	require.Equal(t, http.StatusOK, status)

	var count service.CountDetail
	status, _ = a.do(http.MethodPost, "/counts", "barback", map[string]interface{}{
		"location_id": bar,
		"name":        "Sunday close",
		"areas":       []string{"Back bar", "Speed rail"},
	}, &count)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, count.Areas, 2)
	assert.Equal(t, repository.CountDraft, count.Status)

	var item repository.CountItem
	status, _ = a.do(http.MethodPost, "/areas/"+count.Areas[0].ID+"/items", "barback", map[string]interface{}{
		"product_id":   gin,
		"full_units":   4,
		"partial_unit": "0.5",
	}, &item)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "4.5", item.TotalQuantity.String())
	assert.Equal(t, "3", item.ExpectedQty.String())

	completedAt := time.Now().Add(-time.Minute).UTC()
	status, _ = a.do(http.MethodPatch, "/counts/"+count.ID+"/status", "barback", map[string]interface{}{
		"status":       "COMPLETED",
		"completed_at": completedAt,
	}, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := a.do(http.MethodPost, "/counts/"+count.ID+"/approve", "barback", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", env.Error.Code)

	var approval service.ApprovalResult
	status, _ = a.do(http.MethodPost, "/counts/"+count.ID+"/approve", "owner", nil, &approval)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, repository.CountApproved, approval.Count.Status)
	require.NotNil(t, approval.Apply)
	assert.True(t, approval.Apply.Complete())

	var level repository.InventoryItem
	a.do(http.MethodGet, "/levels/"+gin+"/"+bar, "owner", nil, &level)
	assert.Equal(t, "4.5", level.CurrentQuantity.String())

	var report service.CountReport
	status, _ = a.do(http.MethodGet, "/counts/"+count.ID+"/report", "barback", nil, &report)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "83.25", report.TotalValue.String())
	assert.Equal(t, "1.5", report.VarianceQuantity.String())
	assert.Len(t, report.Significant, 1)

	status, env = a.do(http.MethodPost, "/areas/"+count.Areas[1].ID+"/items", "owner", map[string]interface{}{
		"product_id": gin,
		"full_units": 1,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COUNT_LOCKED", env.Error.Code)

	var reapplied service.ApplyResult
	status, _ = a.do(http.MethodPost, "/counts/"+count.ID+"/reapply", "owner", map[string][]string{"product_ids": {gin}}, &reapplied)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, reapplied.Applied, 1)
	assert.False(t, reapplied.Applied[0].Changed)

	status, env = a.do(http.MethodDelete, "/counts/"+count.ID, "owner", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COUNT_LOCKED", env.Error.Code)
}

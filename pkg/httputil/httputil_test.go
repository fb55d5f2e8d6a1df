package httputil_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/httputil"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", errors.InsufficientStock("gin", "bar", "5", "2"), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"wrapped app error", fmt.Errorf("transfer: %w", errors.AccessDenied("bar")), http.StatusForbidden, "ACCESS_DENIED"},
		{"plain error", fmt.Errorf("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httputil.Error(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "pq:")
		})
	}
}

type createRequest struct {
	Name      string `json:"name" validate:"required,max=5"`
	SortOrder int    `json:"sort_order" validate:"min=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		field   string
	}{
		{"valid", `{"name":"Bar","sort_order":1}`, nil, ""},
		{"missing name", `{"sort_order":1}`, errors.ErrValidation, "name"},
		{"negative order", `{"name":"Bar","sort_order":-1}`, errors.ErrValidation, "sort_order"},
		{"unknown field", `{"name":"Bar","colour":"red"}`, errors.ErrBadRequest, ""},
		{"not json", `name=Bar`, errors.ErrBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req createRequest
			err := httputil.DecodeAndValidate(r, &req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			if tt.field != "" {
				var appErr *errors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Contains(t, appErr.Details, tt.field)
			}
		})
	}
}

type staticVerifier map[string]*actor.Actor

func (v staticVerifier) Actor(token string) (*actor.Actor, error) {
	if a, ok := v[token]; ok {
		return a, nil
	}
	return nil, errors.TokenInvalid()
}

func TestAuthenticate(t *testing.T) {
	verifier := staticVerifier{"good": {ID: "user-1", OrganizationID: "org-1", Role: "staff"}}
	var seen *actor.Actor
	handler := httputil.RequestID(httputil.Logger(logger.Nop())(httputil.Authenticate(verifier)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = actor.FromContext(r.Context())
			httputil.NoContent(w)
		}),
	)))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/levels", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "org-1", seen.OrganizationID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	handler := httputil.Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)
}

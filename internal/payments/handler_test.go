package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/payflow-fin/payflow/internal/invoices"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mw := rbac.Middleware{Logger: logger}
	handler := NewHandler(logger, f.svc, nil, mw)

	r := chi.NewRouter()
	r.Route("/api/payment-requests", func(r chi.Router) {
		r.Use(mw.WithActor)
		handler.MountRoutes(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f
}

func doJSON(t *testing.T, method, url string, actor rbac.Actor, body any) *http.Response {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(rbac.HeaderActorID, actor.ID.String())
	req.Header.Set(rbac.HeaderActorRole, string(actor.Role))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateAndSubmitOverHTTP(t *testing.T) {
	srv, f := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payment-requests/", f.creator, map[string]any{
		"description": "Q3 supplier run",
		"workflow": []map[string]any{
			{"level": 1, "approver_id": f.approver1.ID, "required": true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created requestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "draft", created.Status)

	invoiceID := f.addInvoice(t, 75.0, invoices.StatusImported)
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/payment-requests/%s/invoices/%s", srv.URL, created.ID, invoiceID), f.creator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/payment-requests/%s/submit", srv.URL, created.ID), f.creator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var submitted requestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "in_review", submitted.Status)
	require.NotNil(t, submitted.CurrentApprover)
	require.Equal(t, f.approver1.ID, *submitted.CurrentApprover)
}

func TestApproverRoutesRequirePermission(t *testing.T) {
	srv, f := newTestServer(t)

	// A creator cannot act on approvals, even on a nonexistent request:
	// the permission gate fires before the lookup.
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/payment-requests/%s/action", srv.URL, uuid.New()), f.creator, map[string]any{
		"action": "approved",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestActionValidationCode(t *testing.T) {
	srv, f := newTestServer(t)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/payment-requests/%s/action", srv.URL, uuid.New()), f.approver1, map[string]any{
		"action": "maybe",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, processlog.CodeReviewInvalidAction, problem.Code)
}

func TestUnknownActorRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/payment-requests/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

package invoices

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
)

func respondTo(t *testing.T, h *Handler, err error) (int, httpx.ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.respondError(rec, err)
	var pd httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	return rec.Code, pd
}

func TestRejectionCodesMatchAuditCodes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, nil, rbac.Middleware{})

	// The code surfaced over HTTP must be the one the audit row records.
	status, pd := respondTo(t, h, ErrInvalidAmount)
	require.Equal(t, 400, status)
	require.Equal(t, importFailureCode(ErrInvalidAmount), pd.Code)
	require.Equal(t, processlog.CodeImportInvalidFormat, pd.Code)

	status, pd = respondTo(t, h, ErrMissingFields)
	require.Equal(t, 400, status)
	require.Equal(t, importFailureCode(ErrMissingFields), pd.Code)
	require.Equal(t, processlog.CodeImportMissingFields, pd.Code)

	status, pd = respondTo(t, h, ErrDuplicateBatch)
	require.Equal(t, 409, status)
	require.Equal(t, processlog.CodeImportDuplicate, pd.Code)
}

func TestRespondErrorMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, nil, rbac.Middleware{})

	status, _ := respondTo(t, h, ErrNotFound)
	require.Equal(t, 404, status)

	status, _ = respondTo(t, h, ErrInsufficientPermissions)
	require.Equal(t, 403, status)

	status, pd := respondTo(t, h, &InvalidTransitionError{From: StatusCompleted, To: StatusObsolete})
	require.Equal(t, 409, status)
	require.Equal(t, processlog.CodeMakeChangesInvalidTransition, pd.Code)
	require.Equal(t, "Invalid Transition", pd.Title)
}

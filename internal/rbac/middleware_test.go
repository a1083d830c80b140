package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T, wantRole Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, wantRole, actor.Role)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestWithActorParsesHeaders(t *testing.T) {
	mw := Middleware{}
	handler := mw.WithActor(okHandler(t, RoleFinanceOfficer))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, uuid.NewString())
	req.Header.Set(HeaderActorRole, "finance_officer")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWithActorRejectsBadClaims(t *testing.T) {
	mw := Middleware{}
	handler := mw.WithActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// Missing identity.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown role.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, uuid.NewString())
	req.Header.Set(HeaderActorRole, "superuser")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireEnforcesPermissions(t *testing.T) {
	mw := Middleware{}
	protected := mw.Require(PermApprovalApprove)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(role Role) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(ContextWithActor(req.Context(), Actor{ID: uuid.New(), Role: role}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, serve(RoleApprover))
	require.Equal(t, http.StatusNoContent, serve(RoleAdmin))
	require.Equal(t, http.StatusForbidden, serve(RolePaymentRequestCreator))

	// No actor in context at all.
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

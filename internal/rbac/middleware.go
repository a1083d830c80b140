package rbac

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
)

// Header names populated by the trusted gateway in front of this service.
// Identity verification happens upstream; the core only maps the claims
// onto an Actor.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires actor extraction and permission checks for HTTP routes.
type Middleware struct {
	Logger *slog.Logger
}

// WithActor extracts the actor from gateway headers and stores it in the
// request context. Requests without valid actor claims are rejected.
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(HeaderActorID))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid actor identity")
			return
		}
		role, err := ParseRole(r.Header.Get(HeaderActorRole))
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("reject unknown actor role", slog.String("role", r.Header.Get(HeaderActorRole)))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown actor role")
			return
		}
		ctx := ContextWithActor(r.Context(), Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require ensures the current actor holds all listed permissions.
func (m Middleware) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "no actor in request")
				return
			}
			for _, perm := range perms {
				if !HasPermission(actor.Role, perm) {
					if m.Logger != nil {
						m.Logger.Warn("permission denied",
							slog.String("actor", actor.ID.String()),
							slog.String("role", string(actor.Role)),
							slog.String("permission", perm))
					}
					httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

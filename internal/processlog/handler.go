package processlog

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/rbac"
)

// Handler exposes the audit trail over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers audit trail routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermApprovalRead))
		r.Get("/", h.listTrail)
	})
}

func (h *Handler) listTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f Filters
	if v := q.Get("process"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil || !Process(idx).Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown process index")
			return
		}
		f.Process = Process(idx)
	}
	if v := q.Get("entity_type"); v != "" {
		f.EntityType = EntityType(v)
	}
	f.EntityID = q.Get("entity_id")
	if v := q.Get("status"); v != "" {
		f.Status = Status(v)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be RFC3339")
			return
		}
		f.To = t
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Trail(r.Context(), f, page, pageSize)
	if err != nil {
		h.logger.Error("list process trail", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": result.Entries,
		"paging": map[string]any{
			"page":      result.Paging.Page,
			"page_size": result.Paging.PageSize,
			"has_next":  result.Paging.HasNext,
		},
	})
}

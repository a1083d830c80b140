package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermInvoiceRead))
		r.Get("/", h.listInvoices)
		r.Get("/{id}", h.getInvoice)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermInvoiceCreate))
		r.Post("/import", h.importInvoice)
		r.Post("/import-batch", h.importBatch)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermInvoiceUpdate))
		r.Post("/{id}/obsolete", h.markObsolete)
	})
}

type invoiceResponse struct {
	ID          uuid.UUID         `json:"id"`
	BatchID     string            `json:"batch_id"`
	Amount      float64           `json:"amount"`
	InvoiceDate time.Time         `json:"invoice_date"`
	Vendor      string            `json:"vendor"`
	Status      string            `json:"status"`
	ImportedBy  uuid.UUID         `json:"imported_by"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:          inv.ID,
		BatchID:     inv.BatchID,
		Amount:      inv.Amount,
		InvoiceDate: inv.InvoiceDate,
		Vendor:      inv.Vendor,
		Status:      string(inv.Status),
		ImportedBy:  inv.ImportedBy,
		Metadata:    inv.Metadata,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

type importRequest struct {
	BatchID     string            `json:"batch_id" validate:"required"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	InvoiceDate time.Time         `json:"invoice_date" validate:"required"`
	Vendor      string            `json:"vendor" validate:"required"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *Handler) importInvoice(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())

	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.Import(r.Context(), ImportInvoiceInput{
		BatchID:     req.BatchID,
		Amount:      req.Amount,
		InvoiceDate: req.InvoiceDate,
		Vendor:      req.Vendor,
		ImportedBy:  actor.ID,
		Metadata:    req.Metadata,
	}, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inv))
}

type importBatchRequest struct {
	BatchID string `json:"batch_id" validate:"required"`
	Items   []struct {
		Amount      float64           `json:"amount" validate:"required,gt=0"`
		InvoiceDate time.Time         `json:"invoice_date" validate:"required"`
		Vendor      string            `json:"vendor" validate:"required"`
		Metadata    map[string]string `json:"metadata"`
	} `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) importBatch(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())

	var req importBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	items := make([]ImportInvoiceInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ImportInvoiceInput{
			Amount:      item.Amount,
			InvoiceDate: item.InvoiceDate,
			Vendor:      item.Vendor,
			ImportedBy:  actor.ID,
			Metadata:    item.Metadata,
		})
	}

	imported, err := h.service.ImportBatch(r.Context(), req.BatchID, items, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(imported))
	for _, inv := range imported {
		out = append(out, toResponse(inv))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"invoices": out})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), ListInvoicesRequest{
		Status:  Status(q.Get("status")),
		BatchID: q.Get("batch_id"),
		Vendor:  q.Get("vendor"),
		Limit:   100,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (h *Handler) markObsolete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	inv, err := h.service.MarkObsolete(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var transitionErr *InvalidTransitionError
	if errors.As(err, &transitionErr) {
		httpx.ProblemCode(w, http.StatusConflict, "Invalid Transition", err.Error(), processlog.CodeMakeChangesInvalidTransition)
		return
	}
	if !httpx.Classified(err) {
		h.logger.Error("invoices endpoint", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package payments

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

// Handler manages payment request endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	stats     *StatsProvider
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, stats *StatsProvider, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, stats: stats, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers payment request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermPaymentRead))
		r.Get("/", h.listRequests)
		r.Get("/stats", h.getStats)
		r.Get("/{id}", h.getRequest)
		r.Get("/{id}/history", h.getHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermPaymentCreate))
		r.Post("/", h.createRequest)
		r.Post("/{id}/submit", h.submitRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermPaymentUpdate))
		r.Patch("/{id}", h.updateDraft)
		r.Post("/{id}/invoices/{invoiceID}", h.linkInvoice)
		r.Delete("/{id}/invoices/{invoiceID}", h.unlinkInvoice)
		r.Post("/{id}/complete", h.completeRequest)
		r.Post("/{id}/revert", h.revertRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermApprovalApprove))
		r.Post("/{id}/action", h.recordAction)
	})
}

type stageRequest struct {
	Level      int       `json:"level" validate:"min=1"`
	ApproverID uuid.UUID `json:"approver_id" validate:"required"`
	Required   bool      `json:"required"`
}

type requestResponse struct {
	ID              uuid.UUID  `json:"id"`
	TotalAmount     float64    `json:"total_amount"`
	RequestDate     time.Time  `json:"request_date"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CurrentApprover *uuid.UUID `json:"current_approver,omitempty"`
	Workflow        []Stage    `json:"workflow"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toRequestResponse(pr PaymentRequest) requestResponse {
	return requestResponse{
		ID:              pr.ID,
		TotalAmount:     pr.TotalAmount,
		RequestDate:     pr.RequestDate,
		Description:     pr.Description,
		Status:          string(pr.Status),
		CreatedBy:       pr.CreatedBy,
		CurrentApprover: pr.CurrentApprover,
		Workflow:        pr.Workflow,
		CreatedAt:       pr.CreatedAt,
		UpdatedAt:       pr.UpdatedAt,
	}
}

type historyResponse struct {
	ID         uuid.UUID `json:"id"`
	ApproverID uuid.UUID `json:"approver_id"`
	Action     string    `json:"action"`
	Comments   string    `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type linkedInvoiceResponse struct {
	ID       uuid.UUID `json:"id"`
	Vendor   string    `json:"vendor"`
	Amount   float64   `json:"amount"`
	Status   string    `json:"status"`
	LinkedAt time.Time `json:"linked_at"`
}

type createRequest struct {
	Description string         `json:"description"`
	Workflow    []stageRequest `json:"workflow" validate:"omitempty,dive"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	pr, err := h.service.Create(r.Context(), CreateRequestInput{
		CreatedBy:   actor.ID,
		Description: req.Description,
		Workflow:    toStages(req.Workflow),
	}, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(pr))
}

type updateDraftRequest struct {
	Description *string        `json:"description"`
	Workflow    []stageRequest `json:"workflow" validate:"omitempty,dive"`
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())

	var req updateDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := UpdateDraftInput{Description: req.Description}
	if req.Workflow != nil {
		input.Workflow = toStages(req.Workflow)
	}
	pr, err := h.service.UpdateDraft(r.Context(), id, input, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) linkInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	pr, err := h.service.LinkInvoice(r.Context(), id, invoiceID, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) unlinkInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	pr, err := h.service.UnlinkInvoice(r.Context(), id, invoiceID, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	pr, err := h.service.Submit(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

type actionRequest struct {
	Action   string `json:"action" validate:"required,oneof=approved rejected changes_requested"`
	Comments string `json:"comments"`
}

func (h *Handler) recordAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())

	var req actionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), processlog.CodeReviewInvalidAction)
		return
	}

	pr, err := h.service.RecordApproverAction(r.Context(), id, actor, HistoryAction(req.Action), req.Comments)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) completeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	pr, err := h.service.Complete(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) revertRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	pr, err := h.service.Revert(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	details, err := h.service.GetWithDetails(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	invoices := make([]linkedInvoiceResponse, 0, len(details.Invoices))
	for _, inv := range details.Invoices {
		invoices = append(invoices, linkedInvoiceResponse{
			ID:       inv.ID,
			Vendor:   inv.Vendor,
			Amount:   inv.Amount,
			Status:   string(inv.Status),
			LinkedAt: inv.LinkedAt,
		})
	}
	history := make([]historyResponse, 0, len(details.History))
	for _, entry := range details.History {
		history = append(history, toHistoryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payment_request": toRequestResponse(details.PaymentRequest),
		"invoices":        invoices,
		"history":         history,
	})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toHistoryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequestsRequest{Status: Status(q.Get("status")), Limit: 100}
	if raw := q.Get("created_by"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid created_by filter")
			return
		}
		req.CreatedBy = id
	}
	list, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(list))
	for _, pr := range list {
		out = append(out, toRequestResponse(pr))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payment_requests": out})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func toStages(in []stageRequest) []Stage {
	stages := make([]Stage, 0, len(in))
	for _, s := range in {
		stages = append(stages, Stage{Level: s.Level, ApproverID: s.ApproverID, Required: s.Required})
	}
	return stages
}

func toHistoryResponse(entry HistoryEntry) historyResponse {
	return historyResponse{
		ID:         entry.ID,
		ApproverID: entry.ApproverID,
		Action:     string(entry.Action),
		Comments:   entry.Comments,
		CreatedAt:  entry.CreatedAt,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var transitionErr *InvalidTransitionError
	if errors.As(err, &transitionErr) {
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
		return
	}
	if !httpx.Classified(err) {
		h.logger.Error("payments endpoint", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

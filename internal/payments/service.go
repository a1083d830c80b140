package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/invoices"
	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
	"github.com/payflow-fin/payflow/internal/users"
)

var (
	// ErrRequestNotFound indicates the payment request does not exist.
	ErrRequestNotFound = httpx.NewError(httpx.ErrNotFound, "payments: payment request not found")
	// ErrInvoiceNotFound indicates the referenced invoice does not exist.
	ErrInvoiceNotFound = httpx.NewError(httpx.ErrNotFound, "payments: invoice not found")
	// ErrInvoiceAlreadyLinked indicates the invoice is already attached to
	// an active payment request.
	ErrInvoiceAlreadyLinked = httpx.NewCoded(httpx.ErrConflict, processlog.CodeLinkInvoiceAlreadyLinked, "payments: invoice already linked to an active payment request")
	// ErrInvoiceNotLinkable indicates the invoice is completed or obsolete.
	ErrInvoiceNotLinkable = httpx.NewCoded(httpx.ErrConflict, processlog.CodeLinkInvalidState, "payments: invoice cannot be linked in its current status")
	// ErrInvoiceNotLinked indicates no link exists to remove.
	ErrInvoiceNotLinked = httpx.NewCoded(httpx.ErrConflict, processlog.CodeLinkInvalidState, "payments: invoice is not linked to this payment request")
	// ErrNoInvoicesLinked indicates submission without linked invoices.
	ErrNoInvoicesLinked = httpx.NewCoded(httpx.ErrConflict, processlog.CodeSubmitNoInvoicesLinked, "payments: at least one linked invoice is required")
	// ErrInvalidApprovalWorkflow indicates a structurally invalid workflow
	// or an approver not holding the approver role.
	ErrInvalidApprovalWorkflow = httpx.NewCoded(httpx.ErrValidation, processlog.CodeCreateInvalidWorkflow, "payments: invalid approval workflow")
	// ErrNotCurrentApprover indicates the actor is not the pending approver.
	ErrNotCurrentApprover = httpx.NewCoded(httpx.ErrForbidden, processlog.CodeReviewNotCurrentApprover, "payments: actor is not the current approver")
	// ErrInvalidAction indicates an unknown approver action.
	ErrInvalidAction = httpx.NewCoded(httpx.ErrValidation, processlog.CodeReviewInvalidAction, "payments: invalid approver action")
	// ErrRequestNotEditable indicates the request left draft status.
	ErrRequestNotEditable = httpx.NewError(httpx.ErrConflict, "payments: payment request is not editable")
	// ErrInsufficientPermissions indicates the actor lacks the permission.
	ErrInsufficientPermissions = httpx.NewError(httpx.ErrForbidden, "payments: insufficient permissions")
)

// UserDirectory resolves approver accounts for workflow validation.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (users.User, error)
}

// StatsInvalidator drops cached dashboard stats after a mutation.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service drives payment requests through the approval workflow.
type Service struct {
	repo   Repository
	dir    UserDirectory
	plog   *processlog.Emitter
	stats  StatsInvalidator
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, dir UserDirectory, plog *processlog.Emitter, stats StatsInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, dir: dir, plog: plog, stats: stats, logger: logger}
}

// Create opens a new payment request in draft.
func (s *Service) Create(ctx context.Context, input CreateRequestInput, actor rbac.Actor) (PaymentRequest, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermPaymentCreate) {
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	id := uuid.New()
	if len(input.Workflow) > 0 {
		if err := s.validateWorkflow(ctx, input.Workflow); err != nil {
			s.plog.Failed(ctx, processlog.ProcessCreatePaymentRequest, processlog.EntityPaymentRequest, id, processlog.CodeCreateInvalidWorkflow, map[string]any{
				"reason": err.Error(),
			})
			return PaymentRequest{}, err
		}
	}

	now := time.Now()
	pr := PaymentRequest{
		ID:          id,
		RequestDate: now,
		Description: input.Description,
		Status:      StatusDraft,
		CreatedBy:   input.CreatedBy,
		Workflow:    sortedStages(input.Workflow),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, pr)
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessCreatePaymentRequest, processlog.EntityPaymentRequest, pr.ID, map[string]any{
		"created_by": pr.CreatedBy.String(),
	})
	return pr, nil
}

// UpdateDraft changes description or workflow while the request is in
// draft, typically after an approver requested changes.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, input UpdateDraftInput, actor rbac.Actor) (PaymentRequest, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermPaymentUpdate) {
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	if input.Workflow != nil {
		if err := s.validateWorkflow(ctx, input.Workflow); err != nil {
			return PaymentRequest{}, err
		}
	}

	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if pr.Status != StatusDraft {
			return ErrRequestNotEditable
		}
		description := pr.Description
		if input.Description != nil {
			description = *input.Description
		}
		workflow := pr.Workflow
		if input.Workflow != nil {
			workflow = sortedStages(input.Workflow)
		}
		if err := tx.UpdateDraft(ctx, id, description, workflow); err != nil {
			return err
		}
		pr.Description = description
		pr.Workflow = workflow
		updated = pr
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	s.plog.Completed(ctx, processlog.ProcessMakeChanges, processlog.EntityPaymentRequest, id, map[string]any{
		"actor": actor.ID.String(),
	})
	return updated, nil
}

// LinkInvoice attaches an imported invoice to a draft payment request.
// The invoice moves to linked and the denormalized total is recomputed
// inside the same transaction.
func (s *Service) LinkInvoice(ctx context.Context, requestID, invoiceID uuid.UUID, actor rbac.Actor) (PaymentRequest, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermPaymentUpdate) {
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusDraft {
			return ErrRequestNotEditable
		}
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case invoices.StatusImported:
		case invoices.StatusLinked:
			return ErrInvoiceAlreadyLinked
		default:
			return ErrInvoiceNotLinkable
		}
		if err := tx.InsertLink(ctx, invoiceID, requestID); err != nil {
			return err
		}
		if err := tx.SetInvoiceStatus(ctx, invoiceID, invoices.StatusLinked); err != nil {
			return err
		}
		total, err := tx.RecalcTotal(ctx, requestID)
		if err != nil {
			return err
		}
		pr.TotalAmount = total
		updated = pr
		return nil
	})
	if err != nil {
		if code, ok := linkFailureCode(err); ok {
			s.plog.Failed(ctx, processlog.ProcessLinkInvoices, processlog.EntityPaymentRequest, requestID, code, map[string]any{
				"invoice_id": invoiceID.String(),
				"reason":     err.Error(),
			})
		}
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessLinkInvoices, processlog.EntityPaymentRequest, requestID, map[string]any{
		"invoice_id": invoiceID.String(),
		"total":      updated.TotalAmount,
	})
	return updated, nil
}

// UnlinkInvoice detaches an invoice from a draft request, returning the
// invoice to imported status.
func (s *Service) UnlinkInvoice(ctx context.Context, requestID, invoiceID uuid.UUID, actor rbac.Actor) (PaymentRequest, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermPaymentUpdate) {
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusDraft {
			return ErrRequestNotEditable
		}
		removed, err := tx.DeleteLink(ctx, invoiceID, requestID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrInvoiceNotLinked
		}
		if err := tx.SetInvoiceStatus(ctx, invoiceID, invoices.StatusImported); err != nil {
			return err
		}
		total, err := tx.RecalcTotal(ctx, requestID)
		if err != nil {
			return err
		}
		pr.TotalAmount = total
		updated = pr
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessMakeChanges, processlog.EntityPaymentRequest, requestID, map[string]any{
		"action":     "unlink_invoice",
		"invoice_id": invoiceID.String(),
	})
	return updated, nil
}

// Submit moves a draft request into review. Requires at least one linked
// invoice and a valid workflow; the current approver becomes the lowest
// level stage.
func (s *Service) Submit(ctx context.Context, requestID uuid.UUID, actor rbac.Actor) (PaymentRequest, error) {
	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if actor.ID != pr.CreatedBy && !rbac.HasPermission(actor.Role, rbac.PermPaymentCreate) {
			return ErrInsufficientPermissions
		}
		if pr.Status != StatusDraft {
			return &InvalidTransitionError{From: pr.Status, To: StatusInReview}
		}
		count, err := tx.CountLinks(ctx, requestID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoInvoicesLinked
		}
		if err := s.validateWorkflow(ctx, pr.Workflow); err != nil {
			return err
		}

		// Freeze the denormalized total at submission time.
		total, err := tx.RecalcTotal(ctx, requestID)
		if err != nil {
			return err
		}

		first := firstStage(pr.Workflow)
		approver := first.ApproverID
		if err := tx.UpdateState(ctx, requestID, StatusInReview, &approver); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryEntry{
			ID:               uuid.New(),
			PaymentRequestID: requestID,
			ApproverID:       actor.ID,
			Action:           ActionSubmitted,
			CreatedAt:        time.Now(),
		}); err != nil {
			return err
		}

		pr.Status = StatusInReview
		pr.CurrentApprover = &approver
		pr.TotalAmount = total
		updated = pr
		return nil
	})
	if err != nil {
		if code, ok := submitFailureCode(err); ok {
			s.plog.Failed(ctx, processlog.ProcessSubmitForApproval, processlog.EntityPaymentRequest, requestID, code, map[string]any{
				"reason": err.Error(),
			})
		}
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessSubmitForApproval, processlog.EntityPaymentRequest, requestID, map[string]any{
		"current_approver": updated.CurrentApprover.String(),
		"total":            updated.TotalAmount,
	})
	return updated, nil
}

// RecordApproverAction records the pending approver's decision.
// Approvals advance to the next required stage or reach terminal
// approval; rejections and change requests return the request to draft.
func (s *Service) RecordApproverAction(ctx context.Context, requestID uuid.UUID, actor rbac.Actor, action HistoryAction, comments string) (PaymentRequest, error) {
	switch action {
	case ActionApproved, ActionRejected, ActionChangesRequested:
	default:
		return PaymentRequest{}, ErrInvalidAction
	}

	var (
		updated   PaymentRequest
		historyID uuid.UUID
		terminal  bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusInReview || pr.CurrentApprover == nil {
			return &InvalidTransitionError{From: pr.Status, To: pr.Status}
		}
		if actor.ID != *pr.CurrentApprover {
			return ErrNotCurrentApprover
		}

		historyID = uuid.New()
		if err := tx.InsertHistory(ctx, HistoryEntry{
			ID:               historyID,
			PaymentRequestID: requestID,
			ApproverID:       actor.ID,
			Action:           action,
			Comments:         comments,
			CreatedAt:        time.Now(),
		}); err != nil {
			return err
		}

		switch action {
		case ActionApproved:
			current, ok := stageForApprover(pr.Workflow, actor.ID)
			if !ok {
				return ErrNotCurrentApprover
			}
			if next, ok := nextRequiredStage(pr.Workflow, current.Level); ok {
				approver := next.ApproverID
				if err := tx.UpdateState(ctx, requestID, StatusInReview, &approver); err != nil {
					return err
				}
				pr.CurrentApprover = &approver
			} else {
				terminal = true
				if err := tx.UpdateState(ctx, requestID, StatusApproved, nil); err != nil {
					return err
				}
				pr.Status = StatusApproved
				pr.CurrentApprover = nil
			}
		default:
			if err := tx.UpdateState(ctx, requestID, StatusDraft, nil); err != nil {
				return err
			}
			pr.Status = StatusDraft
			pr.CurrentApprover = nil
		}
		updated = pr
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotCurrentApprover) {
			s.plog.Failed(ctx, processlog.ProcessReviewPaymentRequest, processlog.EntityPaymentRequest, requestID, processlog.CodeReviewNotCurrentApprover, map[string]any{
				"actor": actor.ID.String(),
			})
		}
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	details := map[string]any{
		"payment_request_id": requestID.String(),
		"approver":           actor.ID.String(),
		"action":             string(action),
	}
	switch {
	case terminal:
		s.plog.Completed(ctx, processlog.ProcessApprovePaymentRequest, processlog.EntityApproval, historyID, details)
	case action == ActionChangesRequested:
		s.plog.Completed(ctx, processlog.ProcessRequestChanges, processlog.EntityApproval, historyID, details)
	default:
		s.plog.Completed(ctx, processlog.ProcessReviewPaymentRequest, processlog.EntityApproval, historyID, details)
	}
	return updated, nil
}

// Complete marks an approved request as paid out. Linked invoices
// cascade to completed inside the same transaction.
func (s *Service) Complete(ctx context.Context, requestID uuid.UUID, actor rbac.Actor) (PaymentRequest, error) {
	if actor.Role != rbac.RoleFinanceOfficer && actor.Role != rbac.RoleAdmin {
		s.plog.Failed(ctx, processlog.ProcessMarkAsCompleted, processlog.EntityPaymentRequest, requestID, processlog.CodeCompleteInsufficientPermissions, map[string]any{
			"actor": actor.ID.String(),
		})
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusApproved {
			return &InvalidTransitionError{From: pr.Status, To: StatusCompleted}
		}
		if err := tx.UpdateState(ctx, requestID, StatusCompleted, nil); err != nil {
			return err
		}
		if err := tx.CascadeInvoicesCompleted(ctx, requestID); err != nil {
			return err
		}
		pr.Status = StatusCompleted
		updated = pr
		return nil
	})
	if err != nil {
		var transitionErr *InvalidTransitionError
		if errors.As(err, &transitionErr) {
			s.plog.Failed(ctx, processlog.ProcessMarkAsCompleted, processlog.EntityPaymentRequest, requestID, processlog.CodeCompleteInvalidStatus, map[string]any{
				"status": string(transitionErr.From),
			})
		}
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessMarkAsCompleted, processlog.EntityPaymentRequest, requestID, map[string]any{
		"actor": actor.ID.String(),
	})
	return updated, nil
}

// Revert returns a completed request to approved. Linked invoices keep
// their completed status; reversing the cascade is a finance decision
// outside this operation.
func (s *Service) Revert(ctx context.Context, requestID uuid.UUID, actor rbac.Actor) (PaymentRequest, error) {
	if actor.Role != rbac.RoleFinanceOfficer && actor.Role != rbac.RoleAdmin {
		s.plog.Failed(ctx, processlog.ProcessRevertPaymentRequest, processlog.EntityPaymentRequest, requestID, processlog.CodeRevertInsufficientPermissions, map[string]any{
			"actor": actor.ID.String(),
		})
		return PaymentRequest{}, ErrInsufficientPermissions
	}
	var updated PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusCompleted {
			return &InvalidTransitionError{From: pr.Status, To: StatusApproved}
		}
		if err := tx.UpdateState(ctx, requestID, StatusApproved, nil); err != nil {
			return err
		}
		pr.Status = StatusApproved
		updated = pr
		return nil
	})
	if err != nil {
		var transitionErr *InvalidTransitionError
		if errors.As(err, &transitionErr) {
			s.plog.Failed(ctx, processlog.ProcessRevertPaymentRequest, processlog.EntityPaymentRequest, requestID, processlog.CodeRevertInvalidStatus, map[string]any{
				"status": string(transitionErr.From),
			})
		}
		return PaymentRequest{}, err
	}

	s.invalidateStats(ctx)
	s.plog.Completed(ctx, processlog.ProcessRevertPaymentRequest, processlog.EntityPaymentRequest, requestID, map[string]any{
		"actor": actor.ID.String(),
	})
	return updated, nil
}

// Get fetches a single payment request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (PaymentRequest, error) {
	return s.repo.Get(ctx, id)
}

// GetWithDetails fetches a request with linked invoices and history.
func (s *Service) GetWithDetails(ctx context.Context, id uuid.UUID) (PaymentRequestWithDetails, error) {
	return s.repo.GetWithDetails(ctx, id)
}

// History returns the append-only approval history for a request.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// List returns payment requests matching the request.
func (s *Service) List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, error) {
	return s.repo.List(ctx, req)
}

// validateWorkflow checks shape and that every stage approver is an
// active account holding the approver role.
func (s *Service) validateWorkflow(ctx context.Context, stages []Stage) error {
	if err := ValidateWorkflowShape(stages); err != nil {
		return err
	}
	for _, stage := range stages {
		user, err := s.dir.Get(ctx, stage.ApproverID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return ErrInvalidApprovalWorkflow
			}
			return err
		}
		if !user.Active || user.Role != rbac.RoleApprover {
			return ErrInvalidApprovalWorkflow
		}
	}
	return nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func linkFailureCode(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrInvoiceAlreadyLinked):
		return processlog.CodeLinkInvoiceAlreadyLinked, true
	case errors.Is(err, ErrInvoiceNotFound):
		return processlog.CodeLinkInvoiceNotFound, true
	case errors.Is(err, ErrInvoiceNotLinkable), errors.Is(err, ErrRequestNotEditable):
		return processlog.CodeLinkInvalidState, true
	}
	return 0, false
}

func submitFailureCode(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrNoInvoicesLinked):
		return processlog.CodeSubmitNoInvoicesLinked, true
	case errors.Is(err, ErrInvalidApprovalWorkflow):
		return processlog.CodeSubmitInvalidWorkflow, true
	case errors.Is(err, ErrInsufficientPermissions):
		return processlog.CodeSubmitInsufficientPermissions, true
	}
	return 0, false
}

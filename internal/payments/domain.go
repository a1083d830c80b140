package payments

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/invoices"
)

// Status enumerates payment request lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
)

// InvalidTransitionError reports an illegal status change, carrying the
// current and requested statuses.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payments: invalid transition from %q to %q", e.From, e.To)
}

// Stage is one step of an approval workflow. Level ordering is strict;
// a stage with Required false does not gate terminal approval.
type Stage struct {
	Level      int       `json:"level"`
	ApproverID uuid.UUID `json:"approver_id"`
	Required   bool      `json:"required"`
}

// PaymentRequest groups invoices for payment through an approval workflow.
// TotalAmount is denormalized: it always equals the sum of the amounts of
// currently linked, non-obsolete invoices. CurrentApprover is non-nil
// exactly when Status is in_review.
type PaymentRequest struct {
	ID              uuid.UUID
	TotalAmount     float64
	RequestDate     time.Time
	Description     string
	Status          Status
	CreatedBy       uuid.UUID
	CurrentApprover *uuid.UUID
	Workflow        []Stage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryAction enumerates approval history actions.
type HistoryAction string

const (
	ActionSubmitted        HistoryAction = "submitted"
	ActionApproved         HistoryAction = "approved"
	ActionRejected         HistoryAction = "rejected"
	ActionChangesRequested HistoryAction = "changes_requested"
)

// HistoryEntry is one append-only approval history row.
type HistoryEntry struct {
	ID               uuid.UUID
	PaymentRequestID uuid.UUID
	ApproverID       uuid.UUID
	Action           HistoryAction
	Comments         string
	CreatedAt        time.Time
}

// LinkedInvoice summarises an invoice attached to a payment request.
type LinkedInvoice struct {
	ID       uuid.UUID
	Vendor   string
	Amount   float64
	Status   invoices.Status
	LinkedAt time.Time
}

// PaymentRequestWithDetails bundles the request with its links and history.
type PaymentRequestWithDetails struct {
	PaymentRequest
	Invoices []LinkedInvoice
	History  []HistoryEntry
}

// CreateRequestInput for creating a payment request.
type CreateRequestInput struct {
	CreatedBy   uuid.UUID
	Description string
	Workflow    []Stage
}

// UpdateDraftInput mutates a draft request. Nil fields are untouched.
type UpdateDraftInput struct {
	Description *string
	Workflow    []Stage
}

// ListRequestsRequest filters the request listing.
type ListRequestsRequest struct {
	Status    Status
	CreatedBy uuid.UUID
	Limit     int
	Offset    int
}

// Stats aggregates request counts and pending value for the dashboard.
type Stats struct {
	ByStatus      map[Status]int `json:"by_status"`
	PendingAmount float64        `json:"pending_amount"`
}

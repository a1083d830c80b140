// Package processlog implements the append-only business process log.
// Every state-changing operation in the system emits one terminal record
// tagged with a fixed process index and, on failure, an error code drawn
// from that process's reserved range.
package processlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Process identifies one of the eleven fixed business processes.
type Process int

const (
	ProcessImportInvoices        Process = 1
	ProcessCreatePaymentRequest  Process = 2
	ProcessLinkInvoices          Process = 3
	ProcessSubmitForApproval     Process = 4
	ProcessReviewPaymentRequest  Process = 5
	ProcessRequestChanges        Process = 6
	ProcessMakeChanges           Process = 7
	ProcessApprovePaymentRequest Process = 8
	ProcessMakePayment           Process = 9
	ProcessMarkAsCompleted       Process = 10
	ProcessRevertPaymentRequest  Process = 11
)

var processNames = map[Process]string{
	ProcessImportInvoices:        "Import Invoices",
	ProcessCreatePaymentRequest:  "Create Payment Request",
	ProcessLinkInvoices:          "Link Invoices to Payment Request",
	ProcessSubmitForApproval:     "Submit for Approval",
	ProcessReviewPaymentRequest:  "Review Payment Request",
	ProcessRequestChanges:        "Request Changes",
	ProcessMakeChanges:           "Make Changes",
	ProcessApprovePaymentRequest: "Approve Payment Request",
	ProcessMakePayment:           "Make Payment",
	ProcessMarkAsCompleted:       "Mark as Completed",
	ProcessRevertPaymentRequest:  "Revert Payment Request",
}

// Valid reports whether p is one of the registered processes.
func (p Process) Valid() bool {
	_, ok := processNames[p]
	return ok
}

// Name returns the registered display name for the process.
func (p Process) Name() string {
	return processNames[p]
}

// ErrorCodeRange returns the inclusive error code range reserved for the
// process. Each process owns a 100-wide decade: 1001-1099 for process 1
// up to 11001-11099 for process 11.
func (p Process) ErrorCodeRange() (low, high int) {
	return int(p)*1000 + 1, int(p)*1000 + 99
}

// ValidateErrorCode checks that code lies within the process's reserved
// range. A code outside the range is a caller bug.
func (p Process) ValidateErrorCode(code int) error {
	low, high := p.ErrorCodeRange()
	if code < low || code > high {
		return fmt.Errorf("processlog: code %d outside range %d-%d for process %d (%s)", code, low, high, int(p), p.Name())
	}
	return nil
}

// EntityType classifies the entity a record refers to.
type EntityType string

const (
	EntityInvoice        EntityType = "invoice"
	EntityPaymentRequest EntityType = "payment_request"
	EntityApproval       EntityType = "approval"
	EntityUser           EntityType = "user"
)

// Status marks the lifecycle position of a logged process run.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one row of the business process log.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Process    Process        `json:"process_index"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Status     Status         `json:"status"`
	ErrorCode  *int           `json:"error_code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks structural validity before the entry is written.
func (e Entry) Validate() error {
	if !e.Process.Valid() {
		return fmt.Errorf("processlog: unknown process index %d", int(e.Process))
	}
	switch e.EntityType {
	case EntityInvoice, EntityPaymentRequest, EntityApproval, EntityUser:
	default:
		return fmt.Errorf("processlog: unknown entity type %q", e.EntityType)
	}
	if e.EntityID == uuid.Nil {
		return errors.New("processlog: entity id required")
	}
	switch e.Status {
	case StatusStarted, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("processlog: unknown status %q", e.Status)
	}
	if e.ErrorCode != nil {
		if err := e.Process.ValidateErrorCode(*e.ErrorCode); err != nil {
			return err
		}
	}
	return nil
}

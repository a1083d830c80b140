package invoices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status enumerates invoice lifecycle statuses.
type Status string

const (
	StatusImported  Status = "imported"
	StatusLinked    Status = "linked"
	StatusCompleted Status = "completed"
	StatusObsolete  Status = "obsolete"
)

// transitions is the directed graph of legal status changes. Completed
// is terminal; obsolete is reachable from imported and linked only.
var transitions = map[Status][]Status{
	StatusImported: {StatusLinked, StatusObsolete},
	StatusLinked:   {StatusCompleted, StatusObsolete},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an illegal status change, carrying the
// current and requested statuses.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invoices: invalid transition from %q to %q", e.From, e.To)
}

// Invoice is a vendor billing record imported for eventual payment.
type Invoice struct {
	ID          uuid.UUID
	BatchID     string
	Amount      float64
	InvoiceDate time.Time
	Vendor      string
	Status      Status
	ImportedBy  uuid.UUID
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ImportInvoiceInput describes one invoice to import.
type ImportInvoiceInput struct {
	BatchID     string
	Amount      float64
	InvoiceDate time.Time
	Vendor      string
	ImportedBy  uuid.UUID
	Metadata    map[string]string
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	Status  Status
	BatchID string
	Vendor  string
	Limit   int
	Offset  int
}

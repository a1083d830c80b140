package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
	"github.com/payflow-fin/payflow/internal/shared"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "invoices: not found")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = httpx.NewCoded(httpx.ErrValidation, processlog.CodeImportInvalidFormat, "invoices: amount must be positive")
	// ErrMissingFields indicates required import fields are absent.
	ErrMissingFields = httpx.NewCoded(httpx.ErrValidation, processlog.CodeImportMissingFields, "invoices: batch id, vendor and invoice date are required")
	// ErrDuplicateBatch indicates the batch was already imported.
	ErrDuplicateBatch = httpx.NewCoded(httpx.ErrConflict, processlog.CodeImportDuplicate, "invoices: batch already imported")
	// ErrInsufficientPermissions indicates the actor lacks the permission.
	ErrInsufficientPermissions = httpx.NewError(httpx.ErrForbidden, "invoices: insufficient permissions")
)

const importScope = "invoices.import"

// IdempotencyStore guards batch imports against re-submission.
// Satisfied by shared.IdempotencyStore.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

// Service handles invoice business logic.
type Service struct {
	repo        Repository
	idempotency IdempotencyStore
	plog        *processlog.Emitter
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, idempotency IdempotencyStore, plog *processlog.Emitter, logger *slog.Logger) *Service {
	return &Service{repo: repo, idempotency: idempotency, plog: plog, logger: logger}
}

// Import brings a single invoice into the system with status imported.
func (s *Service) Import(ctx context.Context, input ImportInvoiceInput, actor rbac.Actor) (Invoice, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermInvoiceCreate) {
		return Invoice{}, ErrInsufficientPermissions
	}
	id := uuid.New()
	if err := validateImport(input); err != nil {
		s.plog.Failed(ctx, processlog.ProcessImportInvoices, processlog.EntityInvoice, id, importFailureCode(err), map[string]any{
			"batch_id": input.BatchID,
			"reason":   err.Error(),
		})
		return Invoice{}, err
	}

	now := time.Now()
	inv := Invoice{
		ID:          id,
		BatchID:     strings.TrimSpace(input.BatchID),
		Amount:      input.Amount,
		InvoiceDate: input.InvoiceDate,
		Vendor:      strings.TrimSpace(input.Vendor),
		Status:      StatusImported,
		ImportedBy:  input.ImportedBy,
		Metadata:    input.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, inv)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.plog.Completed(ctx, processlog.ProcessImportInvoices, processlog.EntityInvoice, inv.ID, map[string]any{
		"batch_id": inv.BatchID,
		"vendor":   inv.Vendor,
		"amount":   inv.Amount,
	})
	return inv, nil
}

// ImportBatch imports a batch of invoices atomically. Re-submitting the
// same batch id is rejected instead of imported twice.
func (s *Service) ImportBatch(ctx context.Context, batchID string, items []ImportInvoiceInput, actor rbac.Actor) ([]Invoice, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermInvoiceCreate) {
		return nil, ErrInsufficientPermissions
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" || len(items) == 0 {
		return nil, ErrMissingFields
	}
	for i := range items {
		items[i].BatchID = batchID
		if err := validateImport(items[i]); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	if err := s.idempotency.CheckAndInsert(ctx, "batch:"+batchID, importScope); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, ErrDuplicateBatch
		}
		return nil, err
	}

	now := time.Now()
	invoices := make([]Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, Invoice{
			ID:          uuid.New(),
			BatchID:     batchID,
			Amount:      item.Amount,
			InvoiceDate: item.InvoiceDate,
			Vendor:      strings.TrimSpace(item.Vendor),
			Status:      StatusImported,
			ImportedBy:  item.ImportedBy,
			Metadata:    item.Metadata,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, inv := range invoices {
			if err := tx.Insert(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Release the key so a corrected batch can be retried.
		if delErr := s.idempotency.Delete(ctx, "batch:"+batchID); delErr != nil {
			s.logger.Warn("release import batch key", slog.Any("error", delErr))
		}
		return nil, err
	}

	for _, inv := range invoices {
		s.plog.Completed(ctx, processlog.ProcessImportInvoices, processlog.EntityInvoice, inv.ID, map[string]any{
			"batch_id": batchID,
			"vendor":   inv.Vendor,
			"amount":   inv.Amount,
		})
	}
	return invoices, nil
}

// MarkObsolete retires an invoice. Linked invoices are unlinked from
// draft and in-review payment requests first, with totals recomputed in
// the same transaction. Already obsolete or completed invoices are
// rejected, not silently accepted.
func (s *Service) MarkObsolete(ctx context.Context, id uuid.UUID, actor rbac.Actor) (Invoice, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermInvoiceUpdate) {
		return Invoice{}, ErrInsufficientPermissions
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(current.Status, StatusObsolete) {
			return &InvalidTransitionError{From: current.Status, To: StatusObsolete}
		}
		if current.Status == StatusLinked {
			affected, err := tx.RemoveActiveLinks(ctx, id)
			if err != nil {
				return err
			}
			if err := tx.SetStatus(ctx, id, StatusObsolete); err != nil {
				return err
			}
			if err := tx.RecalcRequestTotals(ctx, affected); err != nil {
				return err
			}
		} else {
			if err := tx.SetStatus(ctx, id, StatusObsolete); err != nil {
				return err
			}
		}
		current.Status = StatusObsolete
		inv = current
		return nil
	})
	if err != nil {
		var transitionErr *InvalidTransitionError
		if errors.As(err, &transitionErr) {
			s.plog.Failed(ctx, processlog.ProcessMakeChanges, processlog.EntityInvoice, id, processlog.CodeMakeChangesInvalidTransition, map[string]any{
				"from": string(transitionErr.From),
				"to":   string(transitionErr.To),
			})
		}
		return Invoice{}, err
	}

	s.plog.Completed(ctx, processlog.ProcessMakeChanges, processlog.EntityInvoice, id, map[string]any{
		"action": "mark_obsolete",
	})
	return inv, nil
}

// Get fetches a single invoice.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the request.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.List(ctx, req)
}

func validateImport(input ImportInvoiceInput) error {
	if strings.TrimSpace(input.BatchID) == "" || strings.TrimSpace(input.Vendor) == "" || input.InvoiceDate.IsZero() || input.ImportedBy == uuid.Nil {
		return ErrMissingFields
	}
	if input.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func importFailureCode(err error) int {
	if errors.Is(err, ErrInvalidAmount) {
		return processlog.CodeImportInvalidFormat
	}
	return processlog.CodeImportMissingFields
}

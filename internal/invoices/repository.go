package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-fin/payflow/internal/platform/db"
)

// Repository defines invoice data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, inv Invoice) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error

	// RemoveActiveLinks deletes the invoice's links to draft or in_review
	// payment requests and returns the affected payment request IDs.
	RemoveActiveLinks(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error)
	// RecalcRequestTotals recomputes total_amount for the given payment
	// requests from their currently linked, non-obsolete invoices.
	RecalcRequestTotals(ctx context.Context, requestIDs []uuid.UUID) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

const invoiceColumns = `id, batch_id, amount, invoice_date, vendor, status, imported_by, metadata, created_at, updated_at`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

func (r *pgRepository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if req.Status != "" {
		add("status = $%d", string(req.Status))
	}
	if req.BatchID != "" {
		add("batch_id = $%d", req.BatchID)
	}
	if req.Vendor != "" {
		add("vendor = $%d", req.Vendor)
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if req.Limit > 0 {
		args = append(args, req.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if req.Offset > 0 {
		args = append(args, req.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) Insert(ctx context.Context, inv Invoice) error {
	metaJSON, err := json.Marshal(inv.Metadata)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO invoices (id, batch_id, amount, invoice_date, vendor, status, imported_by, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.BatchID, inv.Amount, inv.InvoiceDate, inv.Vendor, string(inv.Status), inv.ImportedBy, metaJSON, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

func (r *pgTxRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) RemoveActiveLinks(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.tx.Query(ctx, `DELETE FROM invoice_payment_requests l
USING payment_requests pr
WHERE l.payment_request_id = pr.id
  AND l.invoice_id = $1
  AND pr.status IN ('draft', 'in_review')
RETURNING pr.id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgTxRepository) RecalcRequestTotals(ctx context.Context, requestIDs []uuid.UUID) error {
	for _, id := range requestIDs {
		_, err := r.tx.Exec(ctx, `UPDATE payment_requests SET total_amount = COALESCE((
SELECT SUM(i.amount) FROM invoice_payment_requests l
JOIN invoices i ON i.id = l.invoice_id
WHERE l.payment_request_id = $1 AND i.status <> 'obsolete'
), 0), updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv      Invoice
		status   string
		metaJSON []byte
	)
	err := row.Scan(&inv.ID, &inv.BatchID, &inv.Amount, &inv.InvoiceDate, &inv.Vendor, &status, &inv.ImportedBy, &metaJSON, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	inv.Status = Status(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &inv.Metadata); err != nil {
			return Invoice{}, err
		}
	}
	return inv, nil
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-fin/payflow/internal/invoices"
	"github.com/payflow-fin/payflow/internal/platform/db"
)

// Repository defines payment request data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id uuid.UUID) (PaymentRequest, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (PaymentRequestWithDetails, error)
	List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, error)
	ListHistory(ctx context.Context, requestID uuid.UUID) ([]HistoryEntry, error)
	Stats(ctx context.Context) (Stats, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, pr PaymentRequest) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (PaymentRequest, error)
	UpdateState(ctx context.Context, id uuid.UUID, status Status, currentApprover *uuid.UUID) error
	UpdateDraft(ctx context.Context, id uuid.UUID, description string, workflow []Stage) error
	InsertHistory(ctx context.Context, entry HistoryEntry) error

	GetInvoiceForUpdate(ctx context.Context, invoiceID uuid.UUID) (invoices.Invoice, error)
	SetInvoiceStatus(ctx context.Context, invoiceID uuid.UUID, status invoices.Status) error
	InsertLink(ctx context.Context, invoiceID, requestID uuid.UUID) error
	DeleteLink(ctx context.Context, invoiceID, requestID uuid.UUID) (bool, error)
	CountLinks(ctx context.Context, requestID uuid.UUID) (int, error)
	RecalcTotal(ctx context.Context, requestID uuid.UUID) (float64, error)
	CascadeInvoicesCompleted(ctx context.Context, requestID uuid.UUID) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

const requestColumns = `id, total_amount, request_date, description, status, created_by, current_approver, approval_workflow, created_at, updated_at`

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

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (PaymentRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *pgRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (PaymentRequestWithDetails, error) {
	pr, err := r.Get(ctx, id)
	if err != nil {
		return PaymentRequestWithDetails{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT i.id, i.vendor, i.amount, i.status, l.linked_at
FROM invoice_payment_requests l
JOIN invoices i ON i.id = l.invoice_id
WHERE l.payment_request_id = $1
ORDER BY l.linked_at`, id)
	if err != nil {
		return PaymentRequestWithDetails{}, err
	}
	defer rows.Close()
	var linked []LinkedInvoice
	for rows.Next() {
		var (
			li     LinkedInvoice
			status string
		)
		if err := rows.Scan(&li.ID, &li.Vendor, &li.Amount, &status, &li.LinkedAt); err != nil {
			return PaymentRequestWithDetails{}, err
		}
		li.Status = invoices.Status(status)
		linked = append(linked, li)
	}
	if err := rows.Err(); err != nil {
		return PaymentRequestWithDetails{}, err
	}

	history, err := r.ListHistory(ctx, id)
	if err != nil {
		return PaymentRequestWithDetails{}, err
	}

	return PaymentRequestWithDetails{PaymentRequest: pr, Invoices: linked, History: history}, nil
}

func (r *pgRepository) List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, error) {
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
	if req.CreatedBy != uuid.Nil {
		add("created_by = $%d", req.CreatedBy)
	}
	query := `SELECT ` + requestColumns + ` FROM payment_requests`
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
	var requests []PaymentRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

func (r *pgRepository) ListHistory(ctx context.Context, requestID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, payment_request_id, approver_id, action, comments, created_at
FROM approval_history WHERE payment_request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []HistoryEntry
	for rows.Next() {
		var (
			entry  HistoryEntry
			action string
		)
		if err := rows.Scan(&entry.ID, &entry.PaymentRequestID, &entry.ApproverID, &action, &entry.Comments, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = HistoryAction(action)
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (r *pgRepository) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total_amount) FILTER (WHERE status = 'in_review'), 0)
FROM payment_requests GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	stats := Stats{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var (
			status  string
			count   int
			pending float64
		)
		if err := rows.Scan(&status, &count, &pending); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[Status(status)] = count
		stats.PendingAmount += pending
	}
	return stats, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) Insert(ctx context.Context, pr PaymentRequest) error {
	workflowJSON, err := json.Marshal(pr.Workflow)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO payment_requests (id, total_amount, request_date, description, status, created_by, current_approver, approval_workflow, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pr.ID, pr.TotalAmount, pr.RequestDate, pr.Description, string(pr.Status), pr.CreatedBy, pr.CurrentApprover, workflowJSON, pr.CreatedAt, pr.UpdatedAt)
	return err
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (PaymentRequest, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

func (r *pgTxRepository) UpdateState(ctx context.Context, id uuid.UUID, status Status, currentApprover *uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payment_requests SET status = $2, current_approver = $3, updated_at = now() WHERE id = $1`,
		id, string(status), currentApprover)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *pgTxRepository) UpdateDraft(ctx context.Context, id uuid.UUID, description string, workflow []Stage) error {
	workflowJSON, err := json.Marshal(workflow)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE payment_requests SET description = $2, approval_workflow = $3, updated_at = now() WHERE id = $1`,
		id, description, workflowJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO approval_history (id, payment_request_id, approver_id, action, comments, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.PaymentRequestID, entry.ApproverID, string(entry.Action), entry.Comments, entry.CreatedAt)
	return err
}

func (r *pgTxRepository) GetInvoiceForUpdate(ctx context.Context, invoiceID uuid.UUID) (invoices.Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, batch_id, amount, invoice_date, vendor, status, imported_by, created_at, updated_at
FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID)
	var (
		inv    invoices.Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.BatchID, &inv.Amount, &inv.InvoiceDate, &inv.Vendor, &status, &inv.ImportedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoices.Invoice{}, ErrInvoiceNotFound
		}
		return invoices.Invoice{}, err
	}
	inv.Status = invoices.Status(status)
	return inv, nil
}

func (r *pgTxRepository) SetInvoiceStatus(ctx context.Context, invoiceID uuid.UUID, status invoices.Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`, invoiceID, string(status))
	return err
}

func (r *pgTxRepository) InsertLink(ctx context.Context, invoiceID, requestID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO invoice_payment_requests (invoice_id, payment_request_id, linked_at)
VALUES ($1, $2, $3)`, invoiceID, requestID, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInvoiceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *pgTxRepository) DeleteLink(ctx context.Context, invoiceID, requestID uuid.UUID) (bool, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoice_payment_requests WHERE invoice_id = $1 AND payment_request_id = $2`, invoiceID, requestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgTxRepository) CountLinks(ctx context.Context, requestID uuid.UUID) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_payment_requests l
JOIN invoices i ON i.id = l.invoice_id
WHERE l.payment_request_id = $1 AND i.status <> 'obsolete'`, requestID).Scan(&count)
	return count, err
}

func (r *pgTxRepository) RecalcTotal(ctx context.Context, requestID uuid.UUID) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, `UPDATE payment_requests SET total_amount = COALESCE((
SELECT SUM(i.amount) FROM invoice_payment_requests l
JOIN invoices i ON i.id = l.invoice_id
WHERE l.payment_request_id = $1 AND i.status <> 'obsolete'
), 0), updated_at = now() WHERE id = $1 RETURNING total_amount`, requestID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRequestNotFound
		}
		return 0, err
	}
	return total, nil
}

func (r *pgTxRepository) CascadeInvoicesCompleted(ctx context.Context, requestID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = 'completed', updated_at = now()
WHERE status = 'linked' AND id IN (SELECT invoice_id FROM invoice_payment_requests WHERE payment_request_id = $1)`, requestID)
	return err
}

func scanRequest(row pgx.Row) (PaymentRequest, error) {
	var (
		pr           PaymentRequest
		status       string
		workflowJSON []byte
	)
	err := row.Scan(&pr.ID, &pr.TotalAmount, &pr.RequestDate, &pr.Description, &status, &pr.CreatedBy, &pr.CurrentApprover, &workflowJSON, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRequest{}, ErrRequestNotFound
		}
		return PaymentRequest{}, err
	}
	pr.Status = Status(status)
	if len(workflowJSON) > 0 {
		if err := json.Unmarshal(workflowJSON, &pr.Workflow); err != nil {
			return PaymentRequest{}, err
		}
	}
	return pr, nil
}

package processlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Filters narrow a trail query.
type Filters struct {
	Process    Process
	EntityType EntityType
	EntityID   string
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Repository reads back the process log for the audit trail endpoints.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns entries matching the filters, newest first.
func (r *Repository) List(ctx context.Context, f Filters) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Process != 0 {
		add("process_index = $%d", int(f.Process))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", string(f.EntityType))
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	query := `SELECT id, process_index, entity_type, entity_id, status, error_code, details, created_at FROM business_process_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			processIdx  int
			entityType  string
			status      string
			detailsJSON []byte
		)
		if err := rows.Scan(&e.ID, &processIdx, &entityType, &e.EntityID, &status, &e.ErrorCode, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Process = Process(processIdx)
		e.EntityType = EntityType(entityType)
		e.Status = Status(status)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

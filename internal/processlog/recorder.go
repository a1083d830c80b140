package processlog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists process log entries. Implementations must treat the
// log as append-only.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// PGRecorder writes entries straight into business_process_logs.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a PostgreSQL backed recorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record validates and inserts the entry.
func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return errors.New("processlog: recorder not initialised")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO business_process_logs (id, process_index, entity_type, entity_id, status, error_code, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, int(entry.Process), string(entry.EntityType), entry.EntityID, string(entry.Status), entry.ErrorCode, detailsJSON, entry.CreatedAt)
	return err
}

// Emitter wraps a Recorder with the delivery contract the services rely
// on: the log write happens after the primary mutation committed and a
// write failure must never surface as the operation's failure. Failed
// writes go to the fallback slog channel instead.
type Emitter struct {
	recorder Recorder
	logger   *slog.Logger
	observer Observer
}

// Observer receives a callback per recorded entry, used for metrics.
type Observer interface {
	ObserveProcessLog(process int, status string)
}

// NewEmitter constructs an Emitter.
func NewEmitter(recorder Recorder, logger *slog.Logger) *Emitter {
	return &Emitter{recorder: recorder, logger: logger}
}

// SetObserver attaches a metrics observer. Not safe for concurrent use
// with emission; call during wiring.
func (e *Emitter) SetObserver(obs Observer) {
	e.observer = obs
}

// Started emits a started record.
func (e *Emitter) Started(ctx context.Context, process Process, entityType EntityType, entityID uuid.UUID, details map[string]any) {
	e.emit(ctx, Entry{Process: process, EntityType: entityType, EntityID: entityID, Status: StatusStarted, Details: details})
}

// Completed emits the terminal completed record for a process run.
func (e *Emitter) Completed(ctx context.Context, process Process, entityType EntityType, entityID uuid.UUID, details map[string]any) {
	e.emit(ctx, Entry{Process: process, EntityType: entityType, EntityID: entityID, Status: StatusCompleted, Details: details})
}

// Failed emits the terminal failed record with an error code from the
// process's reserved range.
func (e *Emitter) Failed(ctx context.Context, process Process, entityType EntityType, entityID uuid.UUID, code int, details map[string]any) {
	e.emit(ctx, Entry{Process: process, EntityType: entityType, EntityID: entityID, Status: StatusFailed, ErrorCode: &code, Details: details})
}

func (e *Emitter) emit(ctx context.Context, entry Entry) {
	if e == nil || e.recorder == nil {
		return
	}
	if e.observer != nil {
		e.observer.ObserveProcessLog(int(entry.Process), string(entry.Status))
	}
	if err := e.recorder.Record(ctx, entry); err != nil {
		if e.logger != nil {
			e.logger.Error("process log write failed",
				slog.Int("process", int(entry.Process)),
				slog.String("entity_type", string(entry.EntityType)),
				slog.String("entity_id", entry.EntityID.String()),
				slog.String("status", string(entry.Status)),
				slog.Any("error", err))
		}
	}
}

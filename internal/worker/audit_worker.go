// Package worker persists audit events consumed from the message bus and
// enforces the retention window on stored events.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/amqp"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

// AuditWorker writes audit events from AMQP into SQLite and sweeps
// events older than the configured retention.
type AuditWorker struct {
	storage   *storage.SQLiteRepository
	retention time.Duration
}

func NewAuditWorker(storage *storage.SQLiteRepository, retention time.Duration) *AuditWorker {
	return &AuditWorker{
		storage:   storage,
		retention: retention,
	}
}

// HandleAuditEvent processes a single audit event message from AMQP.
// Returning an error causes the message to be redelivered.
func (w *AuditWorker) HandleAuditEvent(ctx context.Context, msg *amqp.AuditEventMessage) error {
	slog.InfoContext(ctx, "Processing audit event",
		"event_type", msg.EventType,
		"timestamp", msg.Timestamp)

	event := storage.AuditEvent{
		EventType:     msg.EventType,
		IPHash:        msg.IPHash,
		UserAgentHash: msg.UserAgentHash,
		Details:       msg.Details,
		CreatedAt:     msg.Timestamp,
	}

	saved, err := w.storage.SaveAuditEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event persisted",
		"id", saved.ID,
		"event_type", saved.EventType)

	return nil
}

// SweepExpiredEvents deletes audit events older than the retention window.
func (w *AuditWorker) SweepExpiredEvents(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.retention)

	deleted, err := w.storage.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired audit events: %w", err)
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "Retention sweep removed expired audit events",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}

	return nil
}

// StartupSweep runs one retention sweep at worker startup so a worker that
// was down for a while catches up immediately instead of waiting for the
// first tick.
func (w *AuditWorker) StartupSweep(ctx context.Context) error {
	count, err := w.storage.CountAuditEvents(ctx)
	if err != nil {
		return fmt.Errorf("count audit events for startup sweep: %w", err)
	}

	slog.InfoContext(ctx, "Running startup retention sweep", "stored_events", count)

	return w.SweepExpiredEvents(ctx)
}

// RunRetentionLoop sweeps expired events on every tick until ctx ends.
func (w *AuditWorker) RunRetentionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.SweepExpiredEvents(ctx); err != nil {
				slog.ErrorContext(ctx, "Retention sweep failed", "error", err)
			}
		}
	}
}

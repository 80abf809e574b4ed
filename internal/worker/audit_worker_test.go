package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/amqp"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

func newTestWorker(t *testing.T, retention time.Duration) (*AuditWorker, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewAuditWorker(repo, retention), repo
}

func TestAuditWorker_HandleAuditEvent(t *testing.T) {
	w, repo := newTestWorker(t, 365*24*time.Hour)
	ctx := context.Background()

	msg := amqp.NewAuditEventMessage("consent_given", "aabbccdd00112233", "ffee", `{"consent_version":"1.0"}`)
	if err := w.HandleAuditEvent(ctx, msg); err != nil {
		t.Fatalf("HandleAuditEvent() error: %v", err)
	}

	events, err := repo.ListAuditEvents(ctx, "aabbccdd00112233")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	if events[0].EventType != "consent_given" {
		t.Errorf("EventType = %q, want consent_given", events[0].EventType)
	}
	if events[0].Details != `{"consent_version":"1.0"}` {
		t.Errorf("Details = %s", events[0].Details)
	}
}

func TestAuditWorker_SweepExpiredEvents(t *testing.T) {
	w, repo := newTestWorker(t, 24*time.Hour)
	ctx := context.Background()

	old := storage.AuditEvent{
		EventType: "consent_given",
		IPHash:    "old00000000000000",
		Details:   "{}",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	if _, err := repo.SaveAuditEvent(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := storage.AuditEvent{
		EventType: "data_exported",
		IPHash:    "new00000000000000",
		Details:   "{}",
		CreatedAt: time.Now().UTC(),
	}
	if _, err := repo.SaveAuditEvent(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	if err := w.SweepExpiredEvents(ctx); err != nil {
		t.Fatalf("SweepExpiredEvents() error: %v", err)
	}

	count, err := repo.CountAuditEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountAuditEvents() = %d after sweep, want 1", count)
	}

	remaining, err := repo.ListAuditEvents(ctx, "new00000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Error("fresh event was removed by the sweep")
	}
}

func TestAuditWorker_StartupSweep(t *testing.T) {
	w, repo := newTestWorker(t, time.Hour)
	ctx := context.Background()

	stale := storage.AuditEvent{
		EventType: "data_deleted",
		IPHash:    "stale000000000000",
		Details:   "{}",
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	if _, err := repo.SaveAuditEvent(ctx, stale); err != nil {
		t.Fatal(err)
	}

	if err := w.StartupSweep(ctx); err != nil {
		t.Fatalf("StartupSweep() error: %v", err)
	}

	count, err := repo.CountAuditEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("CountAuditEvents() = %d after startup sweep, want 0", count)
	}
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_Consents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestConsent(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestConsent() on empty db error = %v, want ErrNotFound", err)
	}

	first, err := repo.SaveConsent(ctx, Consent{
		IPHash:         "abc123",
		UserAgentHash:  "ua456",
		Preferences:    `{"functional":true,"analytics":false}`,
		ConsentVersion: "1.0",
		Language:       "de",
	})
	if err != nil {
		t.Fatalf("SaveConsent() error: %v", err)
	}
	if first.ID == 0 {
		t.Error("SaveConsent() did not assign an ID")
	}
	if first.CreatedAt.IsZero() {
		t.Error("SaveConsent() did not set CreatedAt")
	}

	second, err := repo.SaveConsent(ctx, Consent{
		IPHash:         "abc123",
		UserAgentHash:  "ua456",
		Preferences:    `{"functional":true,"analytics":true}`,
		ConsentVersion: "1.0",
		Language:       "de",
	})
	if err != nil {
		t.Fatalf("SaveConsent() error: %v", err)
	}

	latest, err := repo.LatestConsent(ctx, "abc123")
	if err != nil {
		t.Fatalf("LatestConsent() error: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("LatestConsent() ID = %d, want %d", latest.ID, second.ID)
	}
	if latest.Preferences != `{"functional":true,"analytics":true}` {
		t.Errorf("LatestConsent() Preferences = %s", latest.Preferences)
	}
}

func TestSQLiteRepository_AuditEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, et := range []string{"consent_given", "data_exported"} {
		if _, err := repo.SaveAuditEvent(ctx, AuditEvent{
			EventType:     et,
			IPHash:        "abc123",
			UserAgentHash: "ua456",
		}); err != nil {
			t.Fatalf("SaveAuditEvent(%s) error: %v", et, err)
		}
	}

	events, err := repo.ListAuditEvents(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListAuditEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListAuditEvents() returned %d events, want 2", len(events))
	}
	if events[0].EventType != "consent_given" || events[1].EventType != "data_exported" {
		t.Errorf("events out of order: %+v", events)
	}
	if events[0].Details != "{}" {
		t.Errorf("empty details stored as %q, want {}", events[0].Details)
	}

	n, err := repo.CountAuditEvents(ctx)
	if err != nil {
		t.Fatalf("CountAuditEvents() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountAuditEvents() = %d, want 2", n)
	}
}

func TestSQLiteRepository_DeleteUserData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.SaveConsent(ctx, Consent{
		IPHash: "victim", UserAgentHash: "ua", Preferences: "{}", ConsentVersion: "1.0", Language: "de",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SaveAuditEvent(ctx, AuditEvent{
		EventType: "consent_given", IPHash: "victim", UserAgentHash: "ua", Details: `{"v":"1.0"}`,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SaveConsent(ctx, Consent{
		IPHash: "other", UserAgentHash: "ua", Preferences: "{}", ConsentVersion: "1.0", Language: "de",
	}); err != nil {
		t.Fatal(err)
	}

	result, err := repo.DeleteUserData(ctx, "victim")
	if err != nil {
		t.Fatalf("DeleteUserData() error: %v", err)
	}
	if result.ConsentsDeleted != 1 {
		t.Errorf("ConsentsDeleted = %d, want 1", result.ConsentsDeleted)
	}
	if result.AuditRowsAnonymized != 1 {
		t.Errorf("AuditRowsAnonymized = %d, want 1", result.AuditRowsAnonymized)
	}

	if _, err := repo.LatestConsent(ctx, "victim"); !errors.Is(err, ErrNotFound) {
		t.Errorf("consent for deleted user still present, err = %v", err)
	}
	if _, err := repo.LatestConsent(ctx, "other"); err != nil {
		t.Errorf("unrelated consent was deleted: %v", err)
	}

	// Audit rows survive but carry no subject hashes anymore.
	events, err := repo.ListAuditEvents(ctx, "anonymized")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Details != "{}" {
		t.Errorf("anonymized events = %+v, want one scrubbed row", events)
	}
}

func TestSQLiteRepository_ExportUserData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	export, err := repo.ExportUserData(ctx, "nobody")
	if err != nil {
		t.Fatalf("ExportUserData() error: %v", err)
	}
	if len(export.Consents) != 0 || len(export.AuditEvents) != 0 {
		t.Errorf("export for unknown user = %+v, want empty", export)
	}

	if _, err := repo.SaveConsent(ctx, Consent{
		IPHash: "abc123", UserAgentHash: "ua", Preferences: "{}", ConsentVersion: "1.0", Language: "de",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SaveAuditEvent(ctx, AuditEvent{
		EventType: "consent_given", IPHash: "abc123", UserAgentHash: "ua",
	}); err != nil {
		t.Fatal(err)
	}

	export, err = repo.ExportUserData(ctx, "abc123")
	if err != nil {
		t.Fatalf("ExportUserData() error: %v", err)
	}
	if len(export.Consents) != 1 || len(export.AuditEvents) != 1 {
		t.Errorf("export = %d consents, %d events, want 1 and 1",
			len(export.Consents), len(export.AuditEvents))
	}
}

func TestSQLiteRepository_DeleteAuditEventsBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.SaveAuditEvent(ctx, AuditEvent{
		EventType: "consent_given", IPHash: "a", UserAgentHash: "ua",
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteAuditEventsBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteAuditEventsBefore() error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d fresh rows, want 0", deleted)
	}

	deleted, err = repo.DeleteAuditEventsBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteAuditEventsBefore() error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	n, _ := repo.CountAuditEvents(ctx)
	if n != 0 {
		t.Errorf("CountAuditEvents() after sweep = %d, want 0", n)
	}
}

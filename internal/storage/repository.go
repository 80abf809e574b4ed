// Package storage persists the service's privacy data: cookie consents and
// audit events. Calculation inputs and results are never written here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("storage: not found")

// Consent is one recorded cookie-consent decision. IP and user agent are
// stored only as short hashes.
type Consent struct {
	ID             int64     `json:"id"`
	IPHash         string    `json:"ip_hash"`
	UserAgentHash  string    `json:"user_agent_hash"`
	Preferences    string    `json:"preferences"` // JSON document
	ConsentVersion string    `json:"consent_version"`
	Language       string    `json:"language"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditEvent is one privacy-relevant action (consent given, data deleted,
// data exported).
type AuditEvent struct {
	ID            int64     `json:"id"`
	EventType     string    `json:"event_type"`
	IPHash        string    `json:"ip_hash"`
	UserAgentHash string    `json:"user_agent_hash"`
	Details       string    `json:"details"` // JSON document
	CreatedAt     time.Time `json:"created_at"`
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveConsent records a consent decision and returns it with ID and
// timestamp filled in.
func (r *SQLiteRepository) SaveConsent(ctx context.Context, c Consent) (Consent, error) {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO consents (ip_hash, user_agent_hash, preferences, consent_version, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.IPHash, c.UserAgentHash, c.Preferences, c.ConsentVersion, c.Language, c.CreatedAt)
	if err != nil {
		return Consent{}, fmt.Errorf("insert consent: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return Consent{}, fmt.Errorf("consent insert id: %w", err)
	}

	slog.InfoContext(ctx, "Consent saved",
		"id", c.ID,
		"ip_hash", c.IPHash,
		"consent_version", c.ConsentVersion)

	return c, nil
}

// LatestConsent returns the newest consent recorded for an IP hash,
// or ErrNotFound.
func (r *SQLiteRepository) LatestConsent(ctx context.Context, ipHash string) (Consent, error) {
	var c Consent
	err := r.db.QueryRowContext(ctx,
		`SELECT id, ip_hash, user_agent_hash, preferences, consent_version, language, created_at
		 FROM consents WHERE ip_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		ipHash).Scan(&c.ID, &c.IPHash, &c.UserAgentHash, &c.Preferences, &c.ConsentVersion, &c.Language, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Consent{}, ErrNotFound
	}
	if err != nil {
		return Consent{}, fmt.Errorf("query latest consent: %w", err)
	}
	return c, nil
}

// SaveAuditEvent records a privacy-relevant event.
func (r *SQLiteRepository) SaveAuditEvent(ctx context.Context, e AuditEvent) (AuditEvent, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Details == "" {
		e.Details = "{}"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_type, ip_hash, user_agent_hash, details, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.EventType, e.IPHash, e.UserAgentHash, e.Details, e.CreatedAt)
	if err != nil {
		return AuditEvent{}, fmt.Errorf("insert audit event: %w", err)
	}

	e.ID, err = res.LastInsertId()
	if err != nil {
		return AuditEvent{}, fmt.Errorf("audit event insert id: %w", err)
	}
	return e, nil
}

// ListAuditEvents returns all audit events recorded for an IP hash, oldest
// first.
func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, ipHash string) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, ip_hash, user_agent_hash, details, created_at
		 FROM audit_events WHERE ip_hash = ? ORDER BY created_at, id`,
		ipHash)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.IPHash, &e.UserAgentHash, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountAuditEvents returns the total number of stored audit events.
func (r *SQLiteRepository) CountAuditEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

// DeletionResult reports what DeleteUserData removed.
type DeletionResult struct {
	ConsentsDeleted     int64 `json:"consents_deleted"`
	AuditRowsAnonymized int64 `json:"audit_rows_anonymized"`
}

// DeleteUserData removes all consents for an IP hash and anonymizes its
// audit rows. The rows themselves stay for the audit trail, stripped of the
// subject hashes.
func (r *SQLiteRepository) DeleteUserData(ctx context.Context, ipHash string) (DeletionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("begin deletion tx: %w", err)
	}
	defer tx.Rollback()

	var result DeletionResult

	res, err := tx.ExecContext(ctx, `DELETE FROM consents WHERE ip_hash = ?`, ipHash)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("delete consents: %w", err)
	}
	result.ConsentsDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`UPDATE audit_events SET ip_hash = 'anonymized', user_agent_hash = 'anonymized', details = '{}'
		 WHERE ip_hash = ?`, ipHash)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("anonymize audit events: %w", err)
	}
	result.AuditRowsAnonymized, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return DeletionResult{}, fmt.Errorf("commit deletion tx: %w", err)
	}

	slog.InfoContext(ctx, "User data deleted",
		"ip_hash", ipHash,
		"consents_deleted", result.ConsentsDeleted,
		"audit_rows_anonymized", result.AuditRowsAnonymized)

	return result, nil
}

// UserDataExport is everything stored for one IP hash.
type UserDataExport struct {
	Consents    []Consent    `json:"consents"`
	AuditEvents []AuditEvent `json:"audit_events"`
}

// ExportUserData collects all stored data for an IP hash.
func (r *SQLiteRepository) ExportUserData(ctx context.Context, ipHash string) (UserDataExport, error) {
	export := UserDataExport{
		Consents:    []Consent{},
		AuditEvents: []AuditEvent{},
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ip_hash, user_agent_hash, preferences, consent_version, language, created_at
		 FROM consents WHERE ip_hash = ? ORDER BY created_at, id`,
		ipHash)
	if err != nil {
		return export, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Consent
		if err := rows.Scan(&c.ID, &c.IPHash, &c.UserAgentHash, &c.Preferences, &c.ConsentVersion, &c.Language, &c.CreatedAt); err != nil {
			return export, fmt.Errorf("scan consent: %w", err)
		}
		export.Consents = append(export.Consents, c)
	}
	if err := rows.Err(); err != nil {
		return export, err
	}

	events, err := r.ListAuditEvents(ctx, ipHash)
	if err != nil {
		return export, err
	}
	if events != nil {
		export.AuditEvents = events
	}

	return export, nil
}

// DeleteAuditEventsBefore removes audit rows older than the cutoff and
// returns how many were deleted. Used by the retention sweep.
func (r *SQLiteRepository) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old audit events: %w", err)
	}
	return res.RowsAffected()
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/amqp"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

// Audit event types.
const (
	EventConsentGiven = "consent_given"
	EventDataDeleted  = "data_deleted"
	EventDataExported = "data_exported"
)

// AuditPublisher publishes audit events to the event bus. Satisfied by
// *amqp.Client; nil is allowed and falls back to direct storage writes.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, msg *amqp.AuditEventMessage) error
}

// PrivacyService implements the DSGVO surface: consent recording, data
// deletion (Art. 17), data export (Art. 20). Subjects are identified only
// by truncated hashes of IP and user agent.
type PrivacyService struct {
	storage   *storage.SQLiteRepository
	publisher AuditPublisher
	retention time.Duration
}

func NewPrivacyService(repo *storage.SQLiteRepository, publisher AuditPublisher, retention time.Duration) *PrivacyService {
	return &PrivacyService{
		storage:   repo,
		publisher: publisher,
		retention: retention,
	}
}

// HashIdentifier reduces an identifier to the first 16 hex chars of its
// SHA-256 digest. Enough to correlate a subject's own data, too little to
// reverse.
func HashIdentifier(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// ConsentRequest is a consent decision as submitted by the client.
type ConsentRequest struct {
	Preferences    map[string]bool
	ConsentVersion string
	Language       string
}

// RecordConsent stores a consent decision and emits a consent_given event.
func (s *PrivacyService) RecordConsent(ctx context.Context, clientIP, userAgent string, req ConsentRequest) (storage.Consent, error) {
	prefs, err := json.Marshal(req.Preferences)
	if err != nil {
		return storage.Consent{}, fmt.Errorf("marshal preferences: %w", err)
	}

	language := req.Language
	if language == "" {
		language = "de"
	}

	consent := storage.Consent{
		IPHash:         HashIdentifier(clientIP),
		UserAgentHash:  HashIdentifier(userAgent),
		Preferences:    string(prefs),
		ConsentVersion: req.ConsentVersion,
		Language:       language,
	}

	saved, err := s.storage.SaveConsent(ctx, consent)
	if err != nil {
		return storage.Consent{}, fmt.Errorf("save consent: %w", err)
	}

	s.recordAuditEvent(ctx, EventConsentGiven, saved.IPHash, saved.UserAgentHash,
		fmt.Sprintf(`{"consent_version":%q}`, req.ConsentVersion))

	return saved, nil
}

// LatestConsent returns the newest consent stored for the client.
func (s *PrivacyService) LatestConsent(ctx context.Context, clientIP string) (storage.Consent, error) {
	return s.storage.LatestConsent(ctx, HashIdentifier(clientIP))
}

// DeleteUserData removes everything stored for the client (Art. 17).
func (s *PrivacyService) DeleteUserData(ctx context.Context, clientIP, userAgent string) (storage.DeletionResult, error) {
	ipHash := HashIdentifier(clientIP)

	result, err := s.storage.DeleteUserData(ctx, ipHash)
	if err != nil {
		return storage.DeletionResult{}, fmt.Errorf("delete user data: %w", err)
	}

	// The deletion itself leaves a trail; the retention sweep removes it
	// eventually.
	s.recordAuditEvent(ctx, EventDataDeleted, ipHash, HashIdentifier(userAgent),
		fmt.Sprintf(`{"consents_deleted":%d}`, result.ConsentsDeleted))

	return result, nil
}

// ExportUserData collects everything stored for the client (Art. 20).
func (s *PrivacyService) ExportUserData(ctx context.Context, clientIP, userAgent string) (storage.UserDataExport, error) {
	ipHash := HashIdentifier(clientIP)

	export, err := s.storage.ExportUserData(ctx, ipHash)
	if err != nil {
		return storage.UserDataExport{}, fmt.Errorf("export user data: %w", err)
	}

	s.recordAuditEvent(ctx, EventDataExported, ipHash, HashIdentifier(userAgent), "")

	return export, nil
}

// ComplianceStatus summarizes how the service handles personal data.
type ComplianceStatus struct {
	DSGVOCompliant     bool   `json:"dsgvo_compliant"`
	DataMinimization   bool   `json:"data_minimization"`
	Anonymization      string `json:"anonymization"`
	RetentionDays      int    `json:"retention_days"`
	StoredAuditEvents  int64  `json:"stored_audit_events"`
	CalculationStorage string `json:"calculation_storage"`
}

// Compliance reports the current privacy posture.
func (s *PrivacyService) Compliance(ctx context.Context) (ComplianceStatus, error) {
	count, err := s.storage.CountAuditEvents(ctx)
	if err != nil {
		return ComplianceStatus{}, fmt.Errorf("count audit events: %w", err)
	}

	return ComplianceStatus{
		DSGVOCompliant:     true,
		DataMinimization:   true,
		Anonymization:      "sha256_truncated_16",
		RetentionDays:      int(s.retention.Hours() / 24),
		StoredAuditEvents:  count,
		CalculationStorage: "none",
	}, nil
}

// recordAuditEvent sends the event to the bus when one is configured, or
// writes it directly. Failures are logged and never fail the request.
func (s *PrivacyService) recordAuditEvent(ctx context.Context, eventType, ipHash, userAgentHash, details string) {
	if s.publisher != nil {
		msg := amqp.NewAuditEventMessage(eventType, ipHash, userAgentHash, details)
		if err := s.publisher.PublishAuditEvent(ctx, msg); err == nil {
			return
		} else {
			slog.ErrorContext(ctx, "Failed to publish audit event, writing directly",
				"event_type", eventType, "error", err)
		}
	}

	if _, err := s.storage.SaveAuditEvent(ctx, storage.AuditEvent{
		EventType:     eventType,
		IPHash:        ipHash,
		UserAgentHash: userAgentHash,
		Details:       details,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to record audit event",
			"event_type", eventType, "error", err)
	}
}

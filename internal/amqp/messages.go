package amqp

import (
	"encoding/json"
	"time"
)

// AuditEventMessage carries one privacy-relevant event to the audit worker.
// Subject identifiers are hashes, never raw IPs or user agents.
type AuditEventMessage struct {
	EventType     string    `json:"event_type"`
	IPHash        string    `json:"ip_hash"`
	UserAgentHash string    `json:"user_agent_hash"`
	Details       string    `json:"details,omitempty"` // JSON document
	Timestamp     time.Time `json:"timestamp"`
}

// NewAuditEventMessage creates a message stamped with the current time.
func NewAuditEventMessage(eventType, ipHash, userAgentHash, details string) *AuditEventMessage {
	return &AuditEventMessage{
		EventType:     eventType,
		IPHash:        ipHash,
		UserAgentHash: userAgentHash,
		Details:       details,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AuditEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditEventMessageFromJSON creates a message from JSON bytes
func AuditEventMessageFromJSON(data []byte) (*AuditEventMessage, error) {
	var msg AuditEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

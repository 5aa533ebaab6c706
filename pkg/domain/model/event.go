package model

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// AuditEvent is one append-only entry on the internal event stream. The
// caregiver dashboard consumes these externally for its summaries.
type AuditEvent struct {
	Type      types.EventType
	OwnerID   types.OwnerID
	Timestamp time.Time
	Payload   map[string]any
}

// NewAuditEvent creates an audit event stamped with the current time.
func NewAuditEvent(eventType types.EventType, ownerID types.OwnerID, payload map[string]any) AuditEvent {
	return AuditEvent{
		Type:      eventType,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

package types

// EventType classifies entries on the audit/metrics stream
type EventType string

const (
	// EventTypeRecall is emitted for every recall request, whatever its verdict
	EventTypeRecall EventType = "recall"
	// EventTypeRecallFailed is emitted when a recall request ends in failure
	EventTypeRecallFailed EventType = "recall_failed"
	// EventTypeReminderDelivered is emitted when a reminder is dispatched
	EventTypeReminderDelivered EventType = "reminder_delivered"
	// EventTypeReminderAcknowledged is emitted on user acknowledgment
	EventTypeReminderAcknowledged EventType = "reminder_acknowledged"
	// EventTypeReminderMissed is emitted when a grace period elapses
	EventTypeReminderMissed EventType = "reminder_missed"
	// EventTypeReminderEscalated is emitted when a caregiver alert is fired
	EventTypeReminderEscalated EventType = "reminder_escalated"
	// EventTypeReminderRecurred is emitted when a recurring reminder spawns
	// its next instance
	EventTypeReminderRecurred EventType = "reminder_recurred"
)

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

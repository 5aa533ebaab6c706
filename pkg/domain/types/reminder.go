package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ReminderID is a UUID-based identifier for a reminder
type ReminderID string

// NewReminderID generates a new UUID v4 ReminderID
func NewReminderID() ReminderID {
	return ReminderID(uuid.New().String())
}

// String returns the string representation of the reminder ID
func (x ReminderID) String() string {
	return string(x)
}

// RecurrenceGroupID links all reminder instances spawned from one
// recurring definition. Each instance keeps its own ReminderID.
type RecurrenceGroupID string

// NewRecurrenceGroupID generates a new UUID v4 RecurrenceGroupID
func NewRecurrenceGroupID() RecurrenceGroupID {
	return RecurrenceGroupID(uuid.New().String())
}

// String returns the string representation of the recurrence group ID
func (x RecurrenceGroupID) String() string {
	return string(x)
}

// ReminderStatus represents the adherence state of a reminder
type ReminderStatus string

const (
	ReminderStatusScheduled    ReminderStatus = "scheduled"
	ReminderStatusDelivered    ReminderStatus = "delivered"
	ReminderStatusAcknowledged ReminderStatus = "acknowledged"
	ReminderStatusMissed       ReminderStatus = "missed"
	ReminderStatusEscalated    ReminderStatus = "escalated"
	ReminderStatusCancelled    ReminderStatus = "cancelled"
)

// AllReminderStatuses returns all valid reminder statuses
func AllReminderStatuses() []ReminderStatus {
	return []ReminderStatus{
		ReminderStatusScheduled,
		ReminderStatusDelivered,
		ReminderStatusAcknowledged,
		ReminderStatusMissed,
		ReminderStatusEscalated,
		ReminderStatusCancelled,
	}
}

// IsValid checks if the reminder status is valid
func (s ReminderStatus) IsValid() bool {
	switch s {
	case ReminderStatusScheduled,
		ReminderStatusDelivered,
		ReminderStatusAcknowledged,
		ReminderStatusMissed,
		ReminderStatusEscalated,
		ReminderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted from s.
func (s ReminderStatus) IsTerminal() bool {
	switch s {
	case ReminderStatusAcknowledged,
		ReminderStatusEscalated,
		ReminderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the transition s -> next is permitted.
// Transitions are monotonic: a reminder never re-enters scheduled, and a
// missed reminder never becomes delivered. Recurrence creates a fresh
// reminder instead of reusing a terminal one.
func (s ReminderStatus) CanTransitionTo(next ReminderStatus) bool {
	switch s {
	case ReminderStatusScheduled:
		return next == ReminderStatusDelivered || next == ReminderStatusCancelled
	case ReminderStatusDelivered:
		return next == ReminderStatusAcknowledged || next == ReminderStatusMissed
	case ReminderStatusMissed:
		return next == ReminderStatusEscalated
	default:
		return false
	}
}

// String returns the string representation of the reminder status
func (s ReminderStatus) String() string {
	return string(s)
}

// ParseReminderStatus parses a string into a ReminderStatus
func ParseReminderStatus(s string) (ReminderStatus, error) {
	status := ReminderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reminder status: %s", s)
	}
	return status, nil
}

package model

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// Reminder is a time-bound alert with an adherence lifecycle. Status moves
// only forward through the state machine in types.ReminderStatus; recurrence
// never mutates an existing reminder but spawns a new one linked by
// RecurrenceGroupID.
type Reminder struct {
	ID                types.ReminderID
	OwnerID           types.OwnerID
	Title             string `masq:"secret"`
	ScheduledAt       time.Time
	RecurrenceRule    string // cron spec or @every duration, empty for one-shot
	RecurrenceGroupID types.RecurrenceGroupID
	Status            types.ReminderStatus
	GracePeriod       time.Duration
	CreatedAt         time.Time

	// Rev is the optimistic-concurrency token, bumped on every status
	// transition by the repository.
	Rev int64
}

// DeliveryDeadline is the instant after which an undelivered acknowledgment
// counts as a miss.
func (r *Reminder) DeliveryDeadline() time.Time {
	return r.ScheduledAt.Add(r.GracePeriod)
}

// Recurring reports whether the reminder carries a recurrence rule.
func (r *Reminder) Recurring() bool {
	return r.RecurrenceRule != ""
}

// Clone returns a copy of the reminder.
func (r *Reminder) Clone() *Reminder {
	copied := *r
	return &copied
}

// NextOccurrence creates the successor instance of a recurring reminder,
// scheduled at nextAt. The new reminder has a fresh ID and starts in
// scheduled status; the original is left untouched.
func (r *Reminder) NextOccurrence(nextAt time.Time) *Reminder {
	return &Reminder{
		ID:                types.NewReminderID(),
		OwnerID:           r.OwnerID,
		Title:             r.Title,
		ScheduledAt:       nextAt,
		RecurrenceRule:    r.RecurrenceRule,
		RecurrenceGroupID: r.RecurrenceGroupID,
		Status:            types.ReminderStatusScheduled,
		GracePeriod:       r.GracePeriod,
		CreatedAt:         time.Now().UTC(),
	}
}

// AdherenceEvent is one immutable entry of a reminder's audit trail. Events
// are append-only and totally ordered by OccurredAt; the repository rejects
// an event whose From does not match the reminder's current status.
type AdherenceEvent struct {
	ReminderID types.ReminderID
	From       types.ReminderStatus
	To         types.ReminderStatus
	OccurredAt time.Time
	Actor      string // "scheduler", "user", "caregiver"
}

package interfaces

import (
	"context"
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// DeliveryReceipt confirms a dispatch to the delivery channel
type DeliveryReceipt struct {
	ReminderID  types.ReminderID
	ScheduledAt time.Time
	DeliveredAt time.Time
}

// DeliveryChannel carries due reminders to the user. Send must be
// idempotent per (ReminderID, ScheduledAt): the scheduler delivers
// at-least-once and relies on the channel to deduplicate retries.
type DeliveryChannel interface {
	Send(ctx context.Context, ownerID types.OwnerID, reminder *model.Reminder) (*DeliveryReceipt, error)
}

// NotifySink receives caregiver alerts when a reminder escalates
type NotifySink interface {
	Notify(ctx context.Context, ownerID types.OwnerID, reminderID types.ReminderID, reason string) error
}

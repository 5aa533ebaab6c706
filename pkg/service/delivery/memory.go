package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

// Alert is one recorded caregiver notification
type Alert struct {
	OwnerID    types.OwnerID
	ReminderID types.ReminderID
	Reason     string
}

// MemoryChannel is an in-process delivery channel and caregiver sink used
// in development mode and tests. It logs every delivery and deduplicates
// sends the same way a real channel is required to.
type MemoryChannel struct {
	mu     sync.Mutex
	seen   map[dispatchKey]*interfaces.DeliveryReceipt
	alerts []Alert
}

var (
	_ interfaces.DeliveryChannel = &MemoryChannel{}
	_ interfaces.NotifySink      = &MemoryChannel{}
)

// NewMemory creates an in-process delivery channel
func NewMemory() *MemoryChannel {
	return &MemoryChannel{
		seen: make(map[dispatchKey]*interfaces.DeliveryReceipt),
	}
}

func (c *MemoryChannel) Send(ctx context.Context, ownerID types.OwnerID, reminder *model.Reminder) (*interfaces.DeliveryReceipt, error) {
	key := dispatchKey{reminderID: reminder.ID, scheduledAt: reminder.ScheduledAt.UTC()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if receipt, exists := c.seen[key]; exists {
		return receipt, nil
	}

	receipt := &interfaces.DeliveryReceipt{
		ReminderID:  reminder.ID,
		ScheduledAt: reminder.ScheduledAt,
		DeliveredAt: time.Now().UTC(),
	}
	c.seen[key] = receipt

	logging.From(ctx).Info("Reminder delivered",
		"owner_id", ownerID,
		"reminder_id", reminder.ID)
	return receipt, nil
}

func (c *MemoryChannel) Notify(ctx context.Context, ownerID types.OwnerID, reminderID types.ReminderID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alerts = append(c.alerts, Alert{
		OwnerID:    ownerID,
		ReminderID: reminderID,
		Reason:     reason,
	})

	logging.From(ctx).Warn("Caregiver alert",
		"owner_id", ownerID,
		"reminder_id", reminderID,
		"reason", reason)
	return nil
}

// Sent returns how many distinct deliveries have been made
func (c *MemoryChannel) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Alerts returns a copy of the recorded caregiver notifications
func (c *MemoryChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

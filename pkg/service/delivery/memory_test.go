package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/delivery"
)

func TestMemoryChannelDeduplicatesSends(t *testing.T) {
	ch := delivery.NewMemory()
	ctx := context.Background()

	reminder := &model.Reminder{
		ID:          types.NewReminderID(),
		OwnerID:     "owner-1",
		Title:       "Take the evening medication",
		ScheduledAt: time.Now(),
	}

	first, err := ch.Send(ctx, reminder.OwnerID, reminder)
	gt.NoError(t, err).Required()

	// A retry of the same dispatch returns the original receipt.
	second, err := ch.Send(ctx, reminder.OwnerID, reminder)
	gt.NoError(t, err).Required()
	gt.Value(t, second).Equal(first)
	gt.Value(t, ch.Sent()).Equal(1)

	// The same reminder rescheduled is a distinct dispatch.
	next := reminder.Clone()
	next.ScheduledAt = reminder.ScheduledAt.Add(24 * time.Hour)
	_, err = ch.Send(ctx, next.OwnerID, next)
	gt.NoError(t, err).Required()
	gt.Value(t, ch.Sent()).Equal(2)
}

func TestMemoryChannelRecordsAlerts(t *testing.T) {
	ch := delivery.NewMemory()
	ctx := context.Background()

	id := types.NewReminderID()
	gt.NoError(t, ch.Notify(ctx, "owner-1", id, "reminder missed")).Required()

	alerts := ch.Alerts()
	gt.Array(t, alerts).Length(1)
	gt.Value(t, alerts[0].OwnerID).Equal(types.OwnerID("owner-1"))
	gt.Value(t, alerts[0].ReminderID).Equal(id)
	gt.Value(t, alerts[0].Reason).Equal("reminder missed")
}

package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/slack-go/slack"
)

// dispatchKey identifies one delivery attempt. The scheduler re-sends
// at-least-once; this key deduplicates the retries.
type dispatchKey struct {
	reminderID  types.ReminderID
	scheduledAt time.Time
}

// SlackChannel delivers reminders to the user's Slack channel and caregiver
// alerts to a separate caregiver channel.
type SlackChannel struct {
	api              *slack.Client
	userChannelID    string
	careGiverChannel string

	mu   sync.Mutex
	seen map[dispatchKey]*interfaces.DeliveryReceipt
}

var (
	_ interfaces.DeliveryChannel = &SlackChannel{}
	_ interfaces.NotifySink      = &SlackChannel{}
)

// NewSlack creates a Slack-backed delivery channel and caregiver sink
func NewSlack(token, userChannelID, caregiverChannelID string) (*SlackChannel, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if userChannelID == "" {
		return nil, goerr.New("Slack user channel ID is required")
	}
	if caregiverChannelID == "" {
		caregiverChannelID = userChannelID
	}

	return &SlackChannel{
		api:              slack.New(token),
		userChannelID:    userChannelID,
		careGiverChannel: caregiverChannelID,
		seen:             make(map[dispatchKey]*interfaces.DeliveryReceipt),
	}, nil
}

// Send posts the reminder to the user channel. A repeated send for the same
// (reminderID, scheduledAt) returns the original receipt without posting
// again.
func (c *SlackChannel) Send(ctx context.Context, ownerID types.OwnerID, reminder *model.Reminder) (*interfaces.DeliveryReceipt, error) {
	key := dispatchKey{reminderID: reminder.ID, scheduledAt: reminder.ScheduledAt.UTC()}

	c.mu.Lock()
	if receipt, exists := c.seen[key]; exists {
		c.mu.Unlock()
		return receipt, nil
	}
	c.mu.Unlock()

	text := fmt.Sprintf(":alarm_clock: Reminder: %s", reminder.Title)
	if _, _, err := c.api.PostMessageContext(ctx, c.userChannelID,
		slack.MsgOptionText(text, false),
	); err != nil {
		return nil, goerr.Wrap(err, "failed to post reminder to Slack",
			goerr.V("reminderID", reminder.ID),
			goerr.V("channel", c.userChannelID),
		)
	}

	receipt := &interfaces.DeliveryReceipt{
		ReminderID:  reminder.ID,
		ScheduledAt: reminder.ScheduledAt,
		DeliveredAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.seen[key] = receipt
	c.mu.Unlock()

	return receipt, nil
}

// Notify posts a caregiver alert for an escalated reminder
func (c *SlackChannel) Notify(ctx context.Context, ownerID types.OwnerID, reminderID types.ReminderID, reason string) error {
	text := fmt.Sprintf(":rotating_light: Caregiver alert for %s: %s (reminder %s)", ownerID, reason, reminderID)
	if _, _, err := c.api.PostMessageContext(ctx, c.careGiverChannel,
		slack.MsgOptionText(text, false),
	); err != nil {
		return goerr.Wrap(err, "failed to post caregiver alert to Slack",
			goerr.V("reminderID", reminderID),
			goerr.V("channel", c.careGiverChannel),
		)
	}
	return nil
}

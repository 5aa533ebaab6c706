package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/service/delivery"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Delivery holds configuration for the reminder delivery channel
type Delivery struct {
	slackToken       string
	userChannel      string
	caregiverChannel string
}

// Flags returns CLI flags for delivery channel configuration
func (d *Delivery) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot OAuth token for reminder delivery (in-process channel if empty)",
			Category:    "Delivery",
			Sources:     cli.EnvVars("MEMORIAI_SLACK_BOT_TOKEN"),
			Destination: &d.slackToken,
		},
		&cli.StringFlag{
			Name:        "slack-user-channel",
			Usage:       "Slack channel or DM ID that receives reminder messages",
			Category:    "Delivery",
			Sources:     cli.EnvVars("MEMORIAI_SLACK_USER_CHANNEL"),
			Destination: &d.userChannel,
		},
		&cli.StringFlag{
			Name:        "slack-caregiver-channel",
			Usage:       "Slack channel ID that receives caregiver escalation alerts",
			Category:    "Delivery",
			Sources:     cli.EnvVars("MEMORIAI_SLACK_CAREGIVER_CHANNEL"),
			Destination: &d.caregiverChannel,
		},
	}
}

// Configure returns the delivery channel and caregiver notification sink.
// With a Slack token both ride the same client; without one an in-process
// logging channel is used (development mode).
func (d *Delivery) Configure() (interfaces.DeliveryChannel, interfaces.NotifySink, error) {
	if d.slackToken == "" {
		logging.Default().Info("Slack not configured, using in-process delivery channel")
		ch := delivery.NewMemory()
		return ch, ch, nil
	}

	if d.userChannel == "" || d.caregiverChannel == "" {
		return nil, nil, goerr.New("slack-user-channel and slack-caregiver-channel are required when slack-bot-token is set")
	}

	ch, err := delivery.NewSlack(d.slackToken, d.userChannel, d.caregiverChannel)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize slack delivery channel")
	}
	logging.Default().Info("Slack delivery channel enabled",
		"user_channel", d.userChannel,
		"caregiver_channel", d.caregiverChannel,
	)
	return ch, ch, nil
}

package scheduler

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
)

// NextOccurrence computes when a recurrence rule next fires after the given
// instant. Rules use the standard 5-field cron syntax plus the @descriptors
// ("@daily", "@every 24h").
func NextOccurrence(rule string, after time.Time) (time.Time, error) {
	if rule == "" {
		return time.Time{}, goerr.New("recurrence rule is empty")
	}

	schedule, err := cron.ParseStandard(rule)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid recurrence rule", goerr.V("rule", rule))
	}

	next := schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, goerr.New("recurrence rule yields no next occurrence", goerr.V("rule", rule))
	}
	return next, nil
}

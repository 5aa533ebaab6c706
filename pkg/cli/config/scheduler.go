package config

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/service/scheduler"
	"github.com/urfave/cli/v3"
)

// Scheduler holds configuration for the reminder sweep loop
type Scheduler struct {
	sweepInterval    time.Duration
	sweepConcurrency int
	spawnOnMissed    bool
}

// Flags returns CLI flags for scheduler configuration
func (s *Scheduler) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "sweep-interval",
			Usage:       "Interval between reminder sweeps",
			Value:       scheduler.DefaultSweepInterval,
			Category:    "Scheduler",
			Sources:     cli.EnvVars("MEMORIAI_SWEEP_INTERVAL"),
			Destination: &s.sweepInterval,
		},
		&cli.IntFlag{
			Name:        "sweep-concurrency",
			Usage:       "Maximum reminders processed in parallel per sweep",
			Value:       scheduler.DefaultSweepConcurrency,
			Category:    "Scheduler",
			Sources:     cli.EnvVars("MEMORIAI_SWEEP_CONCURRENCY"),
			Destination: &s.sweepConcurrency,
		},
		&cli.BoolFlag{
			Name:        "spawn-on-missed",
			Usage:       "Also schedule the next occurrence of a recurring reminder when one is missed",
			Category:    "Scheduler",
			Sources:     cli.EnvVars("MEMORIAI_SPAWN_ON_MISSED"),
			Destination: &s.spawnOnMissed,
		},
	}
}

// Config returns the scheduler configuration built from the flags
func (s *Scheduler) Config() scheduler.Config {
	return scheduler.Config{
		SweepInterval:    s.sweepInterval,
		SweepConcurrency: s.sweepConcurrency,
		SpawnOnMissed:    s.spawnOnMissed,
	}
}

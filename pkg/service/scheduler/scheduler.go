package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSweepInterval is how often due reminders are dispatched
	DefaultSweepInterval = 60 * time.Second
	// DefaultSweepConcurrency bounds parallel reminder processing per sweep
	DefaultSweepConcurrency = 8

	actorScheduler = "scheduler"
)

// Config tunes the scheduler. Zero values fall back to the defaults above.
type Config struct {
	SweepInterval    time.Duration
	SweepConcurrency int

	// SpawnOnMissed also creates the next occurrence of a recurring
	// reminder when it is missed, not only when acknowledged.
	SpawnOnMissed bool
}

func (c Config) normalize() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = DefaultSweepConcurrency
	}
	return c
}

// Scheduler fires due reminders, detects missed acknowledgments and
// escalates them to the caregiver.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type Scheduler struct {
	repo     interfaces.Repository
	delivery interfaces.DeliveryChannel
	notify   interfaces.NotifySink
	bus      interfaces.EventBus
	config   Config

	locks  *lockRegistry
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a scheduler
func New(repo interfaces.Repository, delivery interfaces.DeliveryChannel, notify interfaces.NotifySink, bus interfaces.EventBus, config Config) *Scheduler {
	return &Scheduler{
		repo:     repo,
		delivery: delivery,
		notify:   notify,
		bus:      bus,
		config:   config.normalize(),
		locks:    newLockRegistry(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	logging.Default().Info("Reminder scheduler starting",
		"interval", s.config.SweepInterval.String())

	go s.run(ctx)
}

// Stop signals the scheduler to stop and waits for completion
func (s *Scheduler) Stop() {
	logging.Default().Info("Reminder scheduler stopping")
	close(s.stopCh)
	<-s.doneCh
	logging.Default().Info("Reminder scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	// Initial sweep so reminders due during a restart are not delayed a
	// full interval.
	s.Sweep(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)

		case <-s.stopCh:
			logging.Default().Info("Reminder scheduler received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Reminder scheduler context cancelled")
			return
		}
	}
}

// Sweep runs one dispatch cycle followed by one deadline cycle. Both
// tolerate overlap with a concurrent Sweep: the per-reminder locks and the
// repository's optimistic-concurrency check keep each transition exactly
// once.
func (s *Scheduler) Sweep(ctx context.Context) {
	if err := s.sweepDue(ctx); err != nil {
		logging.From(ctx).Error("Dispatch sweep failed (will retry next interval)", "error", err.Error())
	}
	if err := s.sweepDeadlines(ctx); err != nil {
		logging.From(ctx).Error("Deadline sweep failed (will retry next interval)", "error", err.Error())
	}
}

// sweepDue dispatches reminders whose scheduled time has arrived
func (s *Scheduler) sweepDue(ctx context.Context) error {
	due, err := s.repo.Reminder().FindDueBefore(ctx, time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to find due reminders")
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.SweepConcurrency)
	for _, reminder := range due {
		eg.Go(func() error {
			s.dispatch(ctx, reminder)
			return nil
		})
	}
	return eg.Wait()
}

// dispatch sends one due reminder and records the delivered transition.
// Send happens before the status write: a crash in between re-sends on the
// next sweep, and the channel deduplicates by (reminderID, scheduledAt).
func (s *Scheduler) dispatch(ctx context.Context, reminder *model.Reminder) {
	logger := logging.From(ctx)

	if !s.locks.TryAcquire(reminder.ID) {
		return
	}
	defer s.locks.Release(reminder.ID)

	if _, err := s.delivery.Send(ctx, reminder.OwnerID, reminder); err != nil {
		logger.Error("Failed to dispatch reminder (will retry next sweep)",
			"reminder_id", reminder.ID,
			"error", err.Error())
		return
	}

	updated, err := s.repo.Reminder().UpdateStatus(ctx, reminder.OwnerID, reminder.ID,
		types.ReminderStatusScheduled, types.ReminderStatusDelivered, actorScheduler)
	if err != nil {
		if errors.Is(err, types.ErrConcurrencyConflict) {
			// Another sweep won the transition; the channel deduplicates
			// the extra send.
			logger.Debug("reminder already transitioned", "reminder_id", reminder.ID)
			return
		}
		logger.Error("Failed to mark reminder delivered",
			"reminder_id", reminder.ID,
			"error", err.Error())
		return
	}

	s.publish(ctx, model.NewAuditEvent(types.EventTypeReminderDelivered, updated.OwnerID, map[string]any{
		"reminder_id":  updated.ID.String(),
		"scheduled_at": updated.ScheduledAt,
	}))
}

// sweepDeadlines escalates reminders still delivered past their deadline,
// then finishes any reminder a previous sweep left in missed status.
func (s *Scheduler) sweepDeadlines(ctx context.Context) error {
	now := time.Now().UTC()

	overdue, err := s.repo.Reminder().FindDeliveredBefore(ctx, now)
	if err != nil {
		return goerr.Wrap(err, "failed to find overdue reminders")
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.SweepConcurrency)
	for _, reminder := range overdue {
		eg.Go(func() error {
			s.escalate(egCtx, reminder)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	stale, err := s.repo.Reminder().FindMissedBefore(ctx, now)
	if err != nil {
		return goerr.Wrap(err, "failed to find stale missed reminders")
	}

	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(s.config.SweepConcurrency)
	for _, reminder := range stale {
		eg.Go(func() error {
			s.recoverMissed(egCtx, reminder)
			return nil
		})
	}
	return eg.Wait()
}

// escalate moves one overdue reminder delivered -> missed and hands it to
// finishEscalation for the rest.
func (s *Scheduler) escalate(ctx context.Context, reminder *model.Reminder) {
	logger := logging.From(ctx)

	if !s.locks.TryAcquire(reminder.ID) {
		return
	}
	defer s.locks.Release(reminder.ID)

	missed, err := s.repo.Reminder().UpdateStatus(ctx, reminder.OwnerID, reminder.ID,
		types.ReminderStatusDelivered, types.ReminderStatusMissed, actorScheduler)
	if err != nil {
		if errors.Is(err, types.ErrConcurrencyConflict) {
			logger.Debug("reminder already transitioned", "reminder_id", reminder.ID)
			return
		}
		logger.Error("Failed to mark reminder missed",
			"reminder_id", reminder.ID,
			"error", err.Error())
		return
	}
	s.publish(ctx, model.NewAuditEvent(types.EventTypeReminderMissed, missed.OwnerID, map[string]any{
		"reminder_id": missed.ID.String(),
		"deadline":    missed.DeliveryDeadline(),
	}))

	s.finishEscalation(ctx, missed)
}

// recoverMissed finishes the escalation of a reminder an earlier sweep left
// in missed status, so a transient failure never strands it there.
func (s *Scheduler) recoverMissed(ctx context.Context, reminder *model.Reminder) {
	if !s.locks.TryAcquire(reminder.ID) {
		return
	}
	defer s.locks.Release(reminder.ID)

	s.finishEscalation(ctx, reminder)
}

// finishEscalation moves a missed reminder to escalated and fires the
// caregiver notification. The notification rides the missed -> escalated
// transition, so it fires exactly once even when sweeps overlap. The caller
// must hold the reminder's lock.
func (s *Scheduler) finishEscalation(ctx context.Context, reminder *model.Reminder) {
	logger := logging.From(ctx)

	escalated, err := s.repo.Reminder().UpdateStatus(ctx, reminder.OwnerID, reminder.ID,
		types.ReminderStatusMissed, types.ReminderStatusEscalated, actorScheduler)
	if err != nil {
		if errors.Is(err, types.ErrConcurrencyConflict) {
			logger.Debug("reminder already transitioned", "reminder_id", reminder.ID)
			return
		}
		// The reminder stays missed; the stale sweep retries it next interval.
		logger.Error("Failed to escalate missed reminder",
			"reminder_id", reminder.ID,
			"error", err.Error())
		return
	}

	if err := s.notify.Notify(ctx, escalated.OwnerID, escalated.ID, "reminder missed"); err != nil {
		logger.Error("Failed to notify caregiver",
			"reminder_id", escalated.ID,
			"error", err.Error())
	}
	s.publish(ctx, model.NewAuditEvent(types.EventTypeReminderEscalated, escalated.OwnerID, map[string]any{
		"reminder_id": escalated.ID.String(),
	}))

	if s.config.SpawnOnMissed && escalated.Recurring() {
		if err := s.SpawnNext(ctx, escalated); err != nil {
			logger.Error("Failed to spawn next occurrence",
				"reminder_id", escalated.ID,
				"error", err.Error())
		}
	}
}

// SpawnNext creates the next occurrence of a recurring reminder, linked by
// the recurrence group. The given reminder itself is never mutated.
func (s *Scheduler) SpawnNext(ctx context.Context, reminder *model.Reminder) error {
	if !reminder.Recurring() {
		return nil
	}

	nextAt, err := NextOccurrence(reminder.RecurrenceRule, time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to compute next occurrence", goerr.V("reminderID", reminder.ID))
	}

	next, err := s.repo.Reminder().Put(ctx, reminder.NextOccurrence(nextAt))
	if err != nil {
		return goerr.Wrap(err, "failed to store next occurrence", goerr.V("reminderID", reminder.ID))
	}

	s.publish(ctx, model.NewAuditEvent(types.EventTypeReminderRecurred, next.OwnerID, map[string]any{
		"reminder_id":         next.ID.String(),
		"recurrence_group_id": next.RecurrenceGroupID.String(),
		"scheduled_at":        next.ScheduledAt,
	}))
	return nil
}

func (s *Scheduler) publish(ctx context.Context, event model.AuditEvent) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/scheduler"
)

const (
	// DefaultGracePeriod applies when a reminder is created without one
	DefaultGracePeriod = 15 * time.Minute

	// maxConflictRetries bounds the internal retry on optimistic-lock
	// violations before the conflict is surfaced
	maxConflictRetries = 3
)

// ReminderSpawner creates the next occurrence of a recurring reminder.
// Satisfied by *scheduler.Scheduler.
type ReminderSpawner interface {
	SpawnNext(ctx context.Context, reminder *model.Reminder) error
}

// ReminderUseCase handles reminder definitions and user-side adherence
// actions. Time-driven transitions (deliver, miss, escalate) belong to the
// scheduler.
type ReminderUseCase struct {
	repo    interfaces.Repository
	bus     interfaces.EventBus
	spawner ReminderSpawner
}

// NewReminderUseCase creates a new ReminderUseCase instance
func NewReminderUseCase(repo interfaces.Repository, bus interfaces.EventBus, spawner ReminderSpawner) *ReminderUseCase {
	return &ReminderUseCase{
		repo:    repo,
		bus:     bus,
		spawner: spawner,
	}
}

// Create stores a new reminder in scheduled status. A recurrence rule is
// validated up front and the reminder receives a recurrence group linking
// all of its future occurrences.
func (uc *ReminderUseCase) Create(ctx context.Context, ownerID types.OwnerID, title string, scheduledAt time.Time, recurrenceRule string, gracePeriod time.Duration) (*model.Reminder, error) {
	if title == "" {
		return nil, goerr.New("reminder title is required")
	}
	if scheduledAt.IsZero() {
		return nil, goerr.New("reminder schedule is required")
	}
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}

	reminder := &model.Reminder{
		OwnerID:        ownerID,
		Title:          title,
		ScheduledAt:    scheduledAt.UTC(),
		RecurrenceRule: recurrenceRule,
		Status:         types.ReminderStatusScheduled,
		GracePeriod:    gracePeriod,
	}

	if recurrenceRule != "" {
		if _, err := scheduler.NextOccurrence(recurrenceRule, scheduledAt); err != nil {
			return nil, goerr.Wrap(err, "invalid recurrence rule")
		}
		reminder.RecurrenceGroupID = types.NewRecurrenceGroupID()
	}

	created, err := uc.repo.Reminder().Put(ctx, reminder)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store reminder")
	}

	return created, nil
}

// Acknowledge confirms a delivered reminder on behalf of the user or the
// caregiver. On success a recurring reminder spawns its next occurrence.
func (uc *ReminderUseCase) Acknowledge(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, actor string) (*model.Reminder, error) {
	updated, err := uc.transitionWithRetry(ctx, ownerID, id,
		types.ReminderStatusDelivered, types.ReminderStatusAcknowledged, actor)
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, model.NewAuditEvent(types.EventTypeReminderAcknowledged, updated.OwnerID, map[string]any{
		"reminder_id": updated.ID.String(),
		"actor":       actor,
	}))

	if updated.Recurring() && uc.spawner != nil {
		if err := uc.spawner.SpawnNext(ctx, updated); err != nil {
			return nil, goerr.Wrap(err, "acknowledged but failed to spawn next occurrence", goerr.V("reminderID", id))
		}
	}

	return updated, nil
}

// Cancel withdraws a reminder that has not been delivered yet
func (uc *ReminderUseCase) Cancel(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, actor string) (*model.Reminder, error) {
	return uc.transitionWithRetry(ctx, ownerID, id,
		types.ReminderStatusScheduled, types.ReminderStatusCancelled, actor)
}

// transitionWithRetry applies from -> to, retrying a bounded number of
// times when the optimistic-concurrency check fails. A retry re-reads the
// reminder: when its fresh status still permits the intent the transition
// is reattempted, otherwise the conflict is surfaced.
func (uc *ReminderUseCase) transitionWithRetry(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, from, to types.ReminderStatus, actor string) (*model.Reminder, error) {
	var lastErr error

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		updated, err := uc.repo.Reminder().UpdateStatus(ctx, ownerID, id, from, to, actor)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, types.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err

		fresh, err := uc.repo.Reminder().Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if !fresh.Status.CanTransitionTo(to) {
			return nil, goerr.Wrap(types.ErrConcurrencyConflict, "reminder state no longer permits transition",
				goerr.V("reminderID", id),
				goerr.V("status", fresh.Status),
				goerr.V("to", to),
			)
		}
		from = fresh.Status
	}

	return nil, goerr.Wrap(lastErr, "transition retries exhausted", goerr.V("reminderID", id))
}

// Get retrieves a reminder by ID
func (uc *ReminderUseCase) Get(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) (*model.Reminder, error) {
	return uc.repo.Reminder().Get(ctx, ownerID, id)
}

// List returns the owner's reminders ordered by schedule
func (uc *ReminderUseCase) List(ctx context.Context, ownerID types.OwnerID) ([]*model.Reminder, error) {
	return uc.repo.Reminder().ListByOwner(ctx, ownerID)
}

// Events returns a reminder's adherence audit trail
func (uc *ReminderUseCase) Events(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) ([]*model.AdherenceEvent, error) {
	return uc.repo.Reminder().ListAdherenceEvents(ctx, ownerID, id)
}

// AdherenceSummary counts the owner's reminders by status for caregiver
// dashboards
func (uc *ReminderUseCase) AdherenceSummary(ctx context.Context, ownerID types.OwnerID) (map[types.ReminderStatus]int, error) {
	reminders, err := uc.repo.Reminder().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list reminders")
	}

	summary := make(map[types.ReminderStatus]int, len(types.AllReminderStatuses()))
	for _, status := range types.AllReminderStatuses() {
		summary[status] = 0
	}
	for _, reminder := range reminders {
		summary[reminder.Status]++
	}

	return summary, nil
}

func (uc *ReminderUseCase) publish(ctx context.Context, event model.AuditEvent) {
	if uc.bus != nil {
		uc.bus.Publish(ctx, event)
	}
}

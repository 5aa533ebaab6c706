package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
)

type reminderRepository struct {
	mu      sync.RWMutex
	entries map[types.OwnerID]map[types.ReminderID]*model.Reminder
	events  map[types.ReminderID][]*model.AdherenceEvent
}

func newReminderRepository() *reminderRepository {
	return &reminderRepository{
		entries: make(map[types.OwnerID]map[types.ReminderID]*model.Reminder),
		events:  make(map[types.ReminderID][]*model.AdherenceEvent),
	}
}

func (r *reminderRepository) ensureOwner(ownerID types.OwnerID) map[types.ReminderID]*model.Reminder {
	if _, exists := r.entries[ownerID]; !exists {
		r.entries[ownerID] = make(map[types.ReminderID]*model.Reminder)
	}
	return r.entries[ownerID]
}

func (r *reminderRepository) Put(ctx context.Context, reminder *model.Reminder) (*model.Reminder, error) {
	if reminder.OwnerID == "" {
		return nil, goerr.New("reminder owner is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := reminder.Clone()
	if created.ID == "" {
		created.ID = types.NewReminderID()
	}
	if created.Status == "" {
		created.Status = types.ReminderStatusScheduled
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.Rev = 1

	r.ensureOwner(created.OwnerID)[created.ID] = created
	return created.Clone(), nil
}

func (r *reminderRepository) Get(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) (*model.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reminder, exists := r.entries[ownerID][id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "reminder not found", goerr.V("reminderID", id))
	}
	return reminder.Clone(), nil
}

func (r *reminderRepository) ListByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[ownerID]
	if !exists {
		return []*model.Reminder{}, nil
	}

	result := make([]*model.Reminder, 0, len(bucket))
	for _, reminder := range bucket {
		result = append(result, reminder.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})

	return result, nil
}

func (r *reminderRepository) FindDueBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Reminder
	for _, bucket := range r.entries {
		for _, reminder := range bucket {
			if reminder.Status == types.ReminderStatusScheduled && !reminder.ScheduledAt.After(t) {
				result = append(result, reminder.Clone())
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})

	return result, nil
}

func (r *reminderRepository) FindDeliveredBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	return r.findPastDeadline(types.ReminderStatusDelivered, t), nil
}

func (r *reminderRepository) FindMissedBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	return r.findPastDeadline(types.ReminderStatusMissed, t), nil
}

func (r *reminderRepository) findPastDeadline(s types.ReminderStatus, t time.Time) []*model.Reminder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Reminder
	for _, bucket := range r.entries {
		for _, reminder := range bucket {
			if reminder.Status == s && !reminder.DeliveryDeadline().After(t) {
				result = append(result, reminder.Clone())
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})

	return result
}

func (r *reminderRepository) UpdateStatus(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, from, to types.ReminderStatus, actor string) (*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, exists := r.entries[ownerID][id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "reminder not found", goerr.V("reminderID", id))
	}

	if reminder.Status != from {
		return nil, goerr.Wrap(types.ErrConcurrencyConflict, "reminder status changed concurrently",
			goerr.V("reminderID", id),
			goerr.V("expected", from),
			goerr.V("actual", reminder.Status),
		)
	}
	if !from.CanTransitionTo(to) {
		return nil, goerr.New("status transition not permitted",
			goerr.V("reminderID", id),
			goerr.V("from", from),
			goerr.V("to", to),
		)
	}

	reminder.Status = to
	reminder.Rev++
	r.events[id] = append(r.events[id], &model.AdherenceEvent{
		ReminderID: id,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
	})

	return reminder.Clone(), nil
}

func (r *reminderRepository) ListAdherenceEvents(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) ([]*model.AdherenceEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.entries[ownerID][id]; !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "reminder not found", goerr.V("reminderID", id))
	}

	history := r.events[id]
	result := make([]*model.AdherenceEvent, len(history))
	for i, event := range history {
		copied := *event
		result[i] = &copied
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})

	return result, nil
}

package interfaces

import (
	"context"
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// ReminderRepository defines the interface for Reminder data persistence
type ReminderRepository interface {
	// Put stores a new reminder in scheduled status and returns it with
	// its assigned ID
	Put(ctx context.Context, reminder *model.Reminder) (*model.Reminder, error)

	// Get retrieves a reminder by ID, returning types.ErrNotFound when absent
	Get(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) (*model.Reminder, error)

	// ListByOwner returns the owner's reminders ordered by ScheduledAt ascending
	ListByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Reminder, error)

	// FindDueBefore returns reminders in scheduled status with
	// ScheduledAt <= t, across all owners. Used by the dispatch sweep.
	FindDueBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error)

	// FindDeliveredBefore returns reminders in delivered status whose
	// delivery deadline elapsed at or before t. Used by the deadline sweep.
	FindDeliveredBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error)

	// FindMissedBefore returns reminders stuck in missed status whose
	// delivery deadline elapsed at or before t. The deadline sweep uses it
	// to finish escalations that failed after the missed transition.
	FindMissedBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error)

	// UpdateStatus transitions a reminder from -> to and appends the
	// matching AdherenceEvent in the same transaction. When the stored
	// status no longer equals from, it fails with
	// types.ErrConcurrencyConflict and writes nothing.
	UpdateStatus(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, from, to types.ReminderStatus, actor string) (*model.Reminder, error)

	// ListAdherenceEvents returns the reminder's audit trail ordered by
	// OccurredAt ascending
	ListAdherenceEvents(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) ([]*model.AdherenceEvent, error)
}

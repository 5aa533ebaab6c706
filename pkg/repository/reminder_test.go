package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/repository/memory"
)

func runReminderRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	const owner = types.OwnerID("owner-test")

	newReminder := func(scheduledAt time.Time) *model.Reminder {
		return &model.Reminder{
			OwnerID:     owner,
			Title:       "Take the evening medication",
			ScheduledAt: scheduledAt,
			Status:      types.ReminderStatusScheduled,
			GracePeriod: 15 * time.Minute,
		}
	}

	t.Run("Put assigns ID and revision", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Reminder().Put(ctx, newReminder(time.Now().Add(time.Hour)))
		gt.NoError(t, err).Required()

		gt.String(t, string(created.ID)).NotEqual("")
		gt.Value(t, created.Status).Equal(types.ReminderStatusScheduled)
		gt.Value(t, created.Rev).Equal(int64(1))
	})

	t.Run("UpdateStatus transitions and appends adherence event", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Reminder().Put(ctx, newReminder(time.Now()))
		gt.NoError(t, err).Required()

		updated, err := repo.Reminder().UpdateStatus(ctx, owner, created.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Status).Equal(types.ReminderStatusDelivered)
		gt.Bool(t, updated.Rev > created.Rev).True()

		events, err := repo.Reminder().ListAdherenceEvents(ctx, owner, created.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, events).Length(1)
		gt.Value(t, events[0].From).Equal(types.ReminderStatusScheduled)
		gt.Value(t, events[0].To).Equal(types.ReminderStatusDelivered)
		gt.Value(t, events[0].Actor).Equal("scheduler")
	})

	t.Run("UpdateStatus with stale from conflicts and writes nothing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Reminder().Put(ctx, newReminder(time.Now()))
		gt.NoError(t, err).Required()

		_, err = repo.Reminder().UpdateStatus(ctx, owner, created.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()

		// Second dispatcher loses the race on the same transition.
		_, err = repo.Reminder().UpdateStatus(ctx, owner, created.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.Bool(t, errors.Is(err, types.ErrConcurrencyConflict)).True()

		events, err := repo.Reminder().ListAdherenceEvents(ctx, owner, created.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, events).Length(1)
	})

	t.Run("UpdateStatus rejects illegal transitions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Reminder().Put(ctx, newReminder(time.Now()))
		gt.NoError(t, err).Required()

		_, err = repo.Reminder().UpdateStatus(ctx, owner, created.ID,
			types.ReminderStatusScheduled, types.ReminderStatusEscalated, "scheduler")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrConcurrencyConflict)).False()
	})

	t.Run("FindDueBefore returns only due scheduled reminders", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now()

		due, err := repo.Reminder().Put(ctx, newReminder(now.Add(-time.Minute)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().Put(ctx, newReminder(now.Add(time.Hour)))
		gt.NoError(t, err).Required()

		delivered, err := repo.Reminder().Put(ctx, newReminder(now.Add(-2*time.Minute)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, delivered.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()

		found, err := repo.Reminder().FindDueBefore(ctx, now)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)
		gt.Value(t, found[0].ID).Equal(due.ID)
	})

	t.Run("FindDeliveredBefore honors the grace period", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now()

		overdue, err := repo.Reminder().Put(ctx, newReminder(now.Add(-time.Hour)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, overdue.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()

		// Delivered but still inside its grace period.
		within, err := repo.Reminder().Put(ctx, newReminder(now.Add(-time.Minute)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, within.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()

		found, err := repo.Reminder().FindDeliveredBefore(ctx, now)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)
		gt.Value(t, found[0].ID).Equal(overdue.ID)
	})

	t.Run("FindMissedBefore returns reminders stuck in missed", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now()

		stuck, err := repo.Reminder().Put(ctx, newReminder(now.Add(-time.Hour)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, stuck.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, stuck.ID,
			types.ReminderStatusDelivered, types.ReminderStatusMissed, "scheduler")
		gt.NoError(t, err).Required()

		// Fully escalated reminders are no longer eligible.
		done, err := repo.Reminder().Put(ctx, newReminder(now.Add(-2*time.Hour)))
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, done.ID,
			types.ReminderStatusScheduled, types.ReminderStatusDelivered, "scheduler")
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, done.ID,
			types.ReminderStatusDelivered, types.ReminderStatusMissed, "scheduler")
		gt.NoError(t, err).Required()
		_, err = repo.Reminder().UpdateStatus(ctx, owner, done.ID,
			types.ReminderStatusMissed, types.ReminderStatusEscalated, "scheduler")
		gt.NoError(t, err).Required()

		found, err := repo.Reminder().FindMissedBefore(ctx, now)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)
		gt.Value(t, found[0].ID).Equal(stuck.ID)
	})

	t.Run("ListByOwner orders by scheduled time", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now()

		later, err := repo.Reminder().Put(ctx, newReminder(now.Add(2*time.Hour)))
		gt.NoError(t, err).Required()
		sooner, err := repo.Reminder().Put(ctx, newReminder(now.Add(time.Hour)))
		gt.NoError(t, err).Required()

		listed, err := repo.Reminder().ListByOwner(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, listed).Length(2)
		gt.Value(t, listed[0].ID).Equal(sooner.ID)
		gt.Value(t, listed[1].ID).Equal(later.ID)
	})

	t.Run("Get returns ErrNotFound for missing reminder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Reminder().Get(ctx, owner, types.NewReminderID())
		gt.Bool(t, errors.Is(err, types.ErrNotFound)).True()
	})
}

func TestMemoryReminderRepository(t *testing.T) {
	runReminderRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreReminderRepository(t *testing.T) {
	runReminderRepositoryTest(t, newFirestoreRepository)
}

// Each repository gets its own collection prefix, so the collection group
// sweeps of one must never observe reminders written through another.
func TestFirestoreCollectionPrefixIsolation(t *testing.T) {
	repoA := newFirestoreRepository(t)
	repoB := newFirestoreRepository(t)
	ctx := context.Background()
	now := time.Now()

	created, err := repoA.Reminder().Put(ctx, &model.Reminder{
		OwnerID:     types.OwnerID("owner-test"),
		Title:       "Take the evening medication",
		ScheduledAt: now.Add(-time.Minute),
		Status:      types.ReminderStatusScheduled,
		GracePeriod: 15 * time.Minute,
	})
	gt.NoError(t, err).Required()

	foundA, err := repoA.Reminder().FindDueBefore(ctx, now)
	gt.NoError(t, err).Required()
	gt.Array(t, foundA).Length(1)
	gt.Value(t, foundA[0].ID).Equal(created.ID)

	foundB, err := repoB.Reminder().FindDueBefore(ctx, now)
	gt.NoError(t, err).Required()
	gt.Array(t, foundB).Length(0)
}

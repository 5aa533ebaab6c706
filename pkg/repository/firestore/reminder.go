package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// reminderDoc is the Firestore document representation of model.Reminder.
// DeadlineAt is denormalized so the deadline sweep can query it directly.
type reminderDoc struct {
	ID                string        `firestore:"ID"`
	OwnerID           string        `firestore:"OwnerID"`
	Title             string        `firestore:"Title"`
	ScheduledAt       time.Time     `firestore:"ScheduledAt"`
	RecurrenceRule    string        `firestore:"RecurrenceRule"`
	RecurrenceGroupID string        `firestore:"RecurrenceGroupID"`
	Status            string        `firestore:"Status"`
	GracePeriod       time.Duration `firestore:"GracePeriod"`
	DeadlineAt        time.Time     `firestore:"DeadlineAt"`
	CreatedAt         time.Time     `firestore:"CreatedAt"`
	Rev               int64         `firestore:"Rev"`
}

// adherenceEventDoc is the Firestore document representation of
// model.AdherenceEvent
type adherenceEventDoc struct {
	ReminderID string    `firestore:"ReminderID"`
	From       string    `firestore:"From"`
	To         string    `firestore:"To"`
	OccurredAt time.Time `firestore:"OccurredAt"`
	Actor      string    `firestore:"Actor"`
}

func toReminderDoc(r *model.Reminder) *reminderDoc {
	return &reminderDoc{
		ID:                string(r.ID),
		OwnerID:           string(r.OwnerID),
		Title:             r.Title,
		ScheduledAt:       r.ScheduledAt,
		RecurrenceRule:    r.RecurrenceRule,
		RecurrenceGroupID: string(r.RecurrenceGroupID),
		Status:            string(r.Status),
		GracePeriod:       r.GracePeriod,
		DeadlineAt:        r.DeliveryDeadline(),
		CreatedAt:         r.CreatedAt,
		Rev:               r.Rev,
	}
}

func fromReminderDoc(d *reminderDoc) *model.Reminder {
	return &model.Reminder{
		ID:                types.ReminderID(d.ID),
		OwnerID:           types.OwnerID(d.OwnerID),
		Title:             d.Title,
		ScheduledAt:       d.ScheduledAt,
		RecurrenceRule:    d.RecurrenceRule,
		RecurrenceGroupID: types.RecurrenceGroupID(d.RecurrenceGroupID),
		Status:            types.ReminderStatus(d.Status),
		GracePeriod:       d.GracePeriod,
		CreatedAt:         d.CreatedAt,
		Rev:               d.Rev,
	}
}

type reminderRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newReminderRepository(client *firestore.Client) *reminderRepository {
	return &reminderRepository{client: client}
}

// remindersCollection returns the subcollection path:
// owners/{ownerID}/reminders
// The prefix is applied to the subcollection name as well, so the
// collection group queries below stay scoped to this prefix.
func (r *reminderRepository) remindersCollection(ownerID types.OwnerID) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix+"owners").Doc(string(ownerID)).
		Collection(r.collectionPrefix + "reminders")
}

func (r *reminderRepository) adherenceCollection(ownerID types.OwnerID, id types.ReminderID) *firestore.CollectionRef {
	return r.remindersCollection(ownerID).Doc(string(id)).Collection(r.collectionPrefix + "adherence")
}

func (r *reminderRepository) Put(ctx context.Context, reminder *model.Reminder) (*model.Reminder, error) {
	if reminder.OwnerID == "" {
		return nil, goerr.New("reminder owner is required")
	}

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

	docRef := r.remindersCollection(created.OwnerID).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toReminderDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to put reminder", goerr.V("reminderID", created.ID))
	}

	return created, nil
}

func (r *reminderRepository) Get(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) (*model.Reminder, error) {
	doc, err := r.remindersCollection(ownerID).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "reminder not found", goerr.V("reminderID", id))
		}
		return nil, goerr.Wrap(err, "failed to get reminder", goerr.V("reminderID", id))
	}

	var data reminderDoc
	if err := doc.DataTo(&data); err != nil {
		return nil, goerr.Wrap(err, "failed to decode reminder", goerr.V("reminderID", id))
	}

	return fromReminderDoc(&data), nil
}

func (r *reminderRepository) ListByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Reminder, error) {
	iter := r.remindersCollection(ownerID).
		OrderBy("ScheduledAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectReminders(iter)
}

func (r *reminderRepository) FindDueBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	iter := r.client.CollectionGroup(r.collectionPrefix + "reminders").
		Where("Status", "==", string(types.ReminderStatusScheduled)).
		Where("ScheduledAt", "<=", t).
		OrderBy("ScheduledAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectReminders(iter)
}

func (r *reminderRepository) FindDeliveredBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	return r.findPastDeadline(ctx, types.ReminderStatusDelivered, t)
}

func (r *reminderRepository) FindMissedBefore(ctx context.Context, t time.Time) ([]*model.Reminder, error) {
	return r.findPastDeadline(ctx, types.ReminderStatusMissed, t)
}

func (r *reminderRepository) findPastDeadline(ctx context.Context, s types.ReminderStatus, t time.Time) ([]*model.Reminder, error) {
	iter := r.client.CollectionGroup(r.collectionPrefix + "reminders").
		Where("Status", "==", string(s)).
		Where("DeadlineAt", "<=", t).
		OrderBy("DeadlineAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectReminders(iter)
}

func collectReminders(iter *firestore.DocumentIterator) ([]*model.Reminder, error) {
	var result []*model.Reminder
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate reminders")
		}

		var data reminderDoc
		if err := doc.DataTo(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to decode reminder")
		}
		result = append(result, fromReminderDoc(&data))
	}

	if result == nil {
		result = []*model.Reminder{}
	}
	return result, nil
}

func (r *reminderRepository) UpdateStatus(ctx context.Context, ownerID types.OwnerID, id types.ReminderID, from, to types.ReminderStatus, actor string) (*model.Reminder, error) {
	docRef := r.remindersCollection(ownerID).Doc(string(id))
	eventRef := r.adherenceCollection(ownerID, id).NewDoc()

	var updated *model.Reminder
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(types.ErrNotFound, "reminder not found", goerr.V("reminderID", id))
			}
			return goerr.Wrap(err, "failed to get reminder", goerr.V("reminderID", id))
		}

		var data reminderDoc
		if err := doc.DataTo(&data); err != nil {
			return goerr.Wrap(err, "failed to decode reminder", goerr.V("reminderID", id))
		}

		current := types.ReminderStatus(data.Status)
		if current != from {
			return goerr.Wrap(types.ErrConcurrencyConflict, "reminder status changed concurrently",
				goerr.V("reminderID", id),
				goerr.V("expected", from),
				goerr.V("actual", current),
			)
		}
		if !from.CanTransitionTo(to) {
			return goerr.New("status transition not permitted",
				goerr.V("reminderID", id),
				goerr.V("from", from),
				goerr.V("to", to),
			)
		}

		occurredAt := time.Now().UTC()
		if err := tx.Update(docRef, []firestore.Update{
			{Path: "Status", Value: string(to)},
			{Path: "Rev", Value: data.Rev + 1},
		}); err != nil {
			return goerr.Wrap(err, "failed to update reminder status", goerr.V("reminderID", id))
		}
		if err := tx.Create(eventRef, &adherenceEventDoc{
			ReminderID: string(id),
			From:       string(from),
			To:         string(to),
			OccurredAt: occurredAt,
			Actor:      actor,
		}); err != nil {
			return goerr.Wrap(err, "failed to append adherence event", goerr.V("reminderID", id))
		}

		data.Status = string(to)
		data.Rev++
		updated = fromReminderDoc(&data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *reminderRepository) ListAdherenceEvents(ctx context.Context, ownerID types.OwnerID, id types.ReminderID) ([]*model.AdherenceEvent, error) {
	if _, err := r.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	iter := r.adherenceCollection(ownerID, id).
		OrderBy("OccurredAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var result []*model.AdherenceEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate adherence events", goerr.V("reminderID", id))
		}

		var data adherenceEventDoc
		if err := doc.DataTo(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to decode adherence event")
		}
		result = append(result, &model.AdherenceEvent{
			ReminderID: types.ReminderID(data.ReminderID),
			From:       types.ReminderStatus(data.From),
			To:         types.ReminderStatus(data.To),
			OccurredAt: data.OccurredAt,
			Actor:      data.Actor,
		})
	}

	if result == nil {
		result = []*model.AdherenceEvent{}
	}
	return result, nil
}

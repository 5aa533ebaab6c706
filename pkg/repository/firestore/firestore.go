package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
)

type Firestore struct {
	client   *firestore.Client
	fragment *fragmentRepository
	reminder *reminderRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, used to isolate test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.fragment.collectionPrefix = prefix
		f.reminder.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:   client,
		fragment: newFragmentRepository(client),
		reminder: newReminderRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Fragment() interfaces.FragmentRepository {
	return f.fragment
}

func (f *Firestore) Reminder() interfaces.ReminderRepository {
	return f.reminder
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

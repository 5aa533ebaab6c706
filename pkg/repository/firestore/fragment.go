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

// fragmentDoc is the Firestore document representation of model.Fragment.
// Embedding is stored as firestore.Vector32.
type fragmentDoc struct {
	ID             string             `firestore:"ID"`
	OwnerID        string             `firestore:"OwnerID"`
	Text           string             `firestore:"Text"`
	Embedding      firestore.Vector32 `firestore:"Embedding,omitempty"`
	Category       string             `firestore:"Category"`
	Active         bool               `firestore:"Active"`
	CreatedAt      time.Time          `firestore:"CreatedAt"`
	LastAccessedAt time.Time          `firestore:"LastAccessedAt"`
}

func toFragmentDoc(f *model.Fragment) *fragmentDoc {
	doc := &fragmentDoc{
		ID:             string(f.ID),
		OwnerID:        string(f.OwnerID),
		Text:           f.Text,
		Category:       string(f.Category),
		Active:         f.Active,
		CreatedAt:      f.CreatedAt,
		LastAccessedAt: f.LastAccessedAt,
	}
	if len(f.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(f.Embedding)
	}
	return doc
}

func fromFragmentDoc(d *fragmentDoc) *model.Fragment {
	f := &model.Fragment{
		ID:             types.FragmentID(d.ID),
		OwnerID:        types.OwnerID(d.OwnerID),
		Text:           d.Text,
		Category:       types.FragmentCategory(d.Category),
		Active:         d.Active,
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}
	if len(d.Embedding) > 0 {
		f.Embedding = []float32(d.Embedding)
	}
	return f
}

type fragmentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newFragmentRepository(client *firestore.Client) *fragmentRepository {
	return &fragmentRepository{client: client}
}

// fragmentsCollection returns the subcollection path:
// owners/{ownerID}/fragments
func (r *fragmentRepository) fragmentsCollection(ownerID types.OwnerID) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix+"owners").Doc(string(ownerID)).
		Collection(r.collectionPrefix + "fragments")
}

func (r *fragmentRepository) Put(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error) {
	if fragment.OwnerID == "" {
		return nil, goerr.New("fragment owner is required")
	}

	created := fragment.Clone()
	if created.ID == "" {
		created.ID = types.NewFragmentID()
	}
	now := time.Now().UTC()
	created.Active = true
	created.CreatedAt = now
	created.LastAccessedAt = now

	docRef := r.fragmentsCollection(created.OwnerID).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toFragmentDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to put fragment", goerr.V("fragmentID", created.ID))
	}

	return created, nil
}

func (r *fragmentRepository) Get(ctx context.Context, ownerID types.OwnerID, id types.FragmentID) (*model.Fragment, error) {
	doc, err := r.fragmentsCollection(ownerID).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", id))
		}
		return nil, goerr.Wrap(err, "failed to get fragment", goerr.V("fragmentID", id))
	}

	var data fragmentDoc
	if err := doc.DataTo(&data); err != nil {
		return nil, goerr.Wrap(err, "failed to decode fragment", goerr.V("fragmentID", id))
	}

	return fromFragmentDoc(&data), nil
}

func (r *fragmentRepository) Supersede(ctx context.Context, ownerID types.OwnerID, oldID types.FragmentID, replacement *model.Fragment) (*model.Fragment, error) {
	created := replacement.Clone()
	if created.ID == "" {
		created.ID = types.NewFragmentID()
	}
	created.OwnerID = ownerID
	now := time.Now().UTC()
	created.Active = true
	created.CreatedAt = now
	created.LastAccessedAt = now

	oldRef := r.fragmentsCollection(ownerID).Doc(string(oldID))
	newRef := r.fragmentsCollection(ownerID).Doc(string(created.ID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(oldRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", oldID))
			}
			return goerr.Wrap(err, "failed to get fragment", goerr.V("fragmentID", oldID))
		}

		var old fragmentDoc
		if err := doc.DataTo(&old); err != nil {
			return goerr.Wrap(err, "failed to decode fragment", goerr.V("fragmentID", oldID))
		}
		if !old.Active {
			return goerr.Wrap(types.ErrConcurrencyConflict, "fragment already superseded", goerr.V("fragmentID", oldID))
		}

		if err := tx.Update(oldRef, []firestore.Update{{Path: "Active", Value: false}}); err != nil {
			return goerr.Wrap(err, "failed to deactivate fragment", goerr.V("fragmentID", oldID))
		}
		if err := tx.Set(newRef, toFragmentDoc(created)); err != nil {
			return goerr.Wrap(err, "failed to insert replacement fragment", goerr.V("fragmentID", created.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *fragmentRepository) ListActiveByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Fragment, error) {
	iter := r.fragmentsCollection(ownerID).
		Where("Active", "==", true).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var result []*model.Fragment
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate fragments", goerr.V("ownerID", ownerID))
		}

		var data fragmentDoc
		if err := doc.DataTo(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to decode fragment")
		}
		result = append(result, fromFragmentDoc(&data))
	}

	if result == nil {
		result = []*model.Fragment{}
	}
	return result, nil
}

func (r *fragmentRepository) UpdateEmbedding(ctx context.Context, ownerID types.OwnerID, id types.FragmentID, embedding []float32) error {
	docRef := r.fragmentsCollection(ownerID).Doc(string(id))
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "Embedding", Value: firestore.Vector32(embedding)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", id))
		}
		return goerr.Wrap(err, "failed to update embedding", goerr.V("fragmentID", id))
	}
	return nil
}

func (r *fragmentRepository) TouchAccess(ctx context.Context, ownerID types.OwnerID, ids []types.FragmentID) error {
	now := time.Now().UTC()
	for _, id := range ids {
		docRef := r.fragmentsCollection(ownerID).Doc(string(id))
		_, err := docRef.Update(ctx, []firestore.Update{
			{Path: "LastAccessedAt", Value: now},
		})
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to touch fragment", goerr.V("fragmentID", id))
		}
	}
	return nil
}

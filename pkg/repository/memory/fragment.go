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

type fragmentRepository struct {
	mu      sync.RWMutex
	entries map[types.OwnerID]map[types.FragmentID]*model.Fragment
}

func newFragmentRepository() *fragmentRepository {
	return &fragmentRepository{
		entries: make(map[types.OwnerID]map[types.FragmentID]*model.Fragment),
	}
}

func (r *fragmentRepository) ensureOwner(ownerID types.OwnerID) map[types.FragmentID]*model.Fragment {
	if _, exists := r.entries[ownerID]; !exists {
		r.entries[ownerID] = make(map[types.FragmentID]*model.Fragment)
	}
	return r.entries[ownerID]
}

func (r *fragmentRepository) Put(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error) {
	if fragment.OwnerID == "" {
		return nil, goerr.New("fragment owner is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := fragment.Clone()
	if created.ID == "" {
		created.ID = types.NewFragmentID()
	}
	now := time.Now().UTC()
	created.Active = true
	created.CreatedAt = now
	created.LastAccessedAt = now

	r.ensureOwner(created.OwnerID)[created.ID] = created
	return created.Clone(), nil
}

func (r *fragmentRepository) Get(ctx context.Context, ownerID types.OwnerID, id types.FragmentID) (*model.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fragment, exists := r.entries[ownerID][id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", id))
	}
	return fragment.Clone(), nil
}

func (r *fragmentRepository) Supersede(ctx context.Context, ownerID types.OwnerID, oldID types.FragmentID, replacement *model.Fragment) (*model.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.entries[ownerID][oldID]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", oldID))
	}
	if !old.Active {
		// Another supersede already claimed this fragment. Last-writer-wins
		// would fork the history, so the caller must retry on fresh state.
		return nil, goerr.Wrap(types.ErrConcurrencyConflict, "fragment already superseded", goerr.V("fragmentID", oldID))
	}

	created := replacement.Clone()
	if created.ID == "" {
		created.ID = types.NewFragmentID()
	}
	created.OwnerID = ownerID
	now := time.Now().UTC()
	created.Active = true
	created.CreatedAt = now
	created.LastAccessedAt = now

	old.Active = false
	r.ensureOwner(ownerID)[created.ID] = created
	return created.Clone(), nil
}

func (r *fragmentRepository) ListActiveByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[ownerID]
	if !exists {
		return []*model.Fragment{}, nil
	}

	result := make([]*model.Fragment, 0, len(bucket))
	for _, f := range bucket {
		if f.Active {
			result = append(result, f.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *fragmentRepository) UpdateEmbedding(ctx context.Context, ownerID types.OwnerID, id types.FragmentID, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fragment, exists := r.entries[ownerID][id]
	if !exists {
		return goerr.Wrap(types.ErrNotFound, "fragment not found", goerr.V("fragmentID", id))
	}

	copied := make([]float32, len(embedding))
	copy(copied, embedding)
	fragment.Embedding = copied
	return nil
}

func (r *fragmentRepository) TouchAccess(ctx context.Context, ownerID types.OwnerID, ids []types.FragmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		if fragment, exists := r.entries[ownerID][id]; exists {
			fragment.LastAccessedAt = now
		}
	}
	return nil
}

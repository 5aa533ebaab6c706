package interfaces

import (
	"context"

	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// FragmentRepository defines the interface for Fragment data persistence
type FragmentRepository interface {
	// Put stores a new fragment and returns it with its assigned ID
	Put(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error)

	// Get retrieves a fragment by ID, returning types.ErrNotFound when absent
	Get(ctx context.Context, ownerID types.OwnerID, id types.FragmentID) (*model.Fragment, error)

	// Supersede atomically marks the old fragment inactive and inserts the
	// replacement, or neither change is visible. A lost race on the old
	// fragment's Active flag yields types.ErrConcurrencyConflict.
	Supersede(ctx context.Context, ownerID types.OwnerID, oldID types.FragmentID, replacement *model.Fragment) (*model.Fragment, error)

	// ListActiveByOwner returns the owner's active fragments ordered by
	// CreatedAt descending
	ListActiveByOwner(ctx context.Context, ownerID types.OwnerID) ([]*model.Fragment, error)

	// UpdateEmbedding refreshes the stored embedding vector of a fragment
	UpdateEmbedding(ctx context.Context, ownerID types.OwnerID, id types.FragmentID, embedding []float32) error

	// TouchAccess updates LastAccessedAt for the given fragments. Missing
	// IDs are ignored; recall must not fail because a citation has been
	// superseded meanwhile.
	TouchAccess(ctx context.Context, ownerID types.OwnerID, ids []types.FragmentID) error
}

package interfaces

import (
	"context"
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// Hit is one nearest-neighbor search result
type Hit struct {
	FragmentID types.FragmentID
	Score      float32
}

// EmbeddingIndex maintains a similarity-searchable structure over active
// fragments' vectors. Entries are keyed by owner: a search never returns
// another owner's fragments. The index may lag behind the fragment store;
// an unindexed fragment is simply absent from results.
type EmbeddingIndex interface {
	// Upsert inserts or replaces the vector for a fragment. Fails with
	// types.ErrDimensionMismatch when the vector length differs from the
	// configured dimension.
	Upsert(ctx context.Context, ownerID types.OwnerID, fragmentID types.FragmentID, vector []float32, lastAccessedAt time.Time) error

	// Remove drops a fragment from the index. Removing an absent fragment
	// is a no-op.
	Remove(ctx context.Context, ownerID types.OwnerID, fragmentID types.FragmentID) error

	// Search returns up to k hits ordered by descending cosine similarity,
	// ties broken by most recent LastAccessedAt. An owner with no indexed
	// fragments yields an empty slice, not an error.
	Search(ctx context.Context, ownerID types.OwnerID, vector []float32, k int) ([]Hit, error)

	// Dimension returns the configured vector dimension
	Dimension() int
}

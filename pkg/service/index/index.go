package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// metaLastAccessed is the metadata key holding the fragment's
// LastAccessedAt, used to break similarity ties.
const metaLastAccessed = "last_accessed_at"

// Index is an embedded vector index over chromem-go. Each owner gets a
// dedicated collection so nearest-neighbor queries can never cross owners.
type Index struct {
	db        *chromem.DB
	dimension int

	mu          sync.RWMutex
	collections map[types.OwnerID]*chromem.Collection
}

var _ interfaces.EmbeddingIndex = &Index{}

// New creates an index with the given vector dimension
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, goerr.New("index dimension must be positive", goerr.V("dimension", dimension))
	}

	return &Index{
		db:          chromem.NewDB(),
		dimension:   dimension,
		collections: make(map[types.OwnerID]*chromem.Collection),
	}, nil
}

// Dimension returns the configured vector dimension
func (x *Index) Dimension() int {
	return x.dimension
}

func (x *Index) getCollection(ownerID types.OwnerID) *chromem.Collection {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collections[ownerID]
}

func (x *Index) getOrCreateCollection(ownerID types.OwnerID) (*chromem.Collection, error) {
	if col := x.getCollection(ownerID); col != nil {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if col, exists := x.collections[ownerID]; exists {
		return col, nil
	}

	// Embeddings are provided by the caller, so no embedding function and
	// the default cosine similarity are used.
	col, err := x.db.CreateCollection(fmt.Sprintf("owner_%s", ownerID), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create index collection", goerr.V("ownerID", ownerID))
	}

	x.collections[ownerID] = col
	return col, nil
}

func (x *Index) Upsert(ctx context.Context, ownerID types.OwnerID, fragmentID types.FragmentID, vector []float32, lastAccessedAt time.Time) error {
	if len(vector) != x.dimension {
		return goerr.Wrap(types.ErrDimensionMismatch, "vector length differs from index dimension",
			goerr.V("fragmentID", fragmentID),
			goerr.V("expected", x.dimension),
			goerr.V("actual", len(vector)),
		)
	}

	col, err := x.getOrCreateCollection(ownerID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        string(fragmentID),
		Embedding: vector,
		Metadata: map[string]string{
			metaLastAccessed: lastAccessedAt.UTC().Format(time.RFC3339Nano),
		},
		// chromem requires non-empty content; the fragment text itself
		// stays in the fragment store.
		Content: string(fragmentID),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to upsert vector", goerr.V("fragmentID", fragmentID))
	}

	return nil
}

func (x *Index) Remove(ctx context.Context, ownerID types.OwnerID, fragmentID types.FragmentID) error {
	col := x.getCollection(ownerID)
	if col == nil {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, string(fragmentID)); err != nil {
		return goerr.Wrap(err, "failed to remove vector", goerr.V("fragmentID", fragmentID))
	}
	return nil
}

func (x *Index) Search(ctx context.Context, ownerID types.OwnerID, vector []float32, k int) ([]interfaces.Hit, error) {
	if len(vector) != x.dimension {
		return nil, goerr.Wrap(types.ErrDimensionMismatch, "query vector length differs from index dimension",
			goerr.V("expected", x.dimension),
			goerr.V("actual", len(vector)),
		)
	}
	if k <= 0 {
		return []interfaces.Hit{}, nil
	}

	col := x.getCollection(ownerID)
	if col == nil || col.Count() == 0 {
		return []interfaces.Hit{}, nil
	}

	// Over-fetch so that equal-similarity candidates just outside the
	// top-k can still win the recency tie-break.
	fetch := k * 2
	if fetch > col.Count() {
		fetch = col.Count()
	}

	results, err := col.QueryEmbedding(ctx, vector, fetch, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query index", goerr.V("ownerID", ownerID))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return lastAccessedOf(results[i]).After(lastAccessedOf(results[j]))
	})

	if len(results) > k {
		results = results[:k]
	}

	hits := make([]interfaces.Hit, len(results))
	for i, res := range results {
		hits[i] = interfaces.Hit{
			FragmentID: types.FragmentID(res.ID),
			Score:      res.Similarity,
		}
	}

	return hits, nil
}

// lastAccessedOf reads the recency metadata of a result. An unparsable or
// missing value sorts last.
func lastAccessedOf(res chromem.Result) time.Time {
	t, err := time.Parse(time.RFC3339Nano, res.Metadata[metaLastAccessed])
	if err != nil {
		return time.Time{}
	}
	return t
}

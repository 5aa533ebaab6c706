package index_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/index"
)

func TestIndexRejectsDimensionMismatch(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	err = idx.Upsert(ctx, "owner-a", types.NewFragmentID(), []float32{1, 0}, time.Now())
	gt.Bool(t, errors.Is(err, types.ErrDimensionMismatch)).True()

	_, err = idx.Search(ctx, "owner-a", []float32{1, 0, 0, 0}, 3)
	gt.Bool(t, errors.Is(err, types.ErrDimensionMismatch)).True()
}

func TestIndexOwnerIsolation(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	fragA := types.NewFragmentID()
	fragB := types.NewFragmentID()

	gt.NoError(t, idx.Upsert(ctx, "owner-a", fragA, []float32{1, 0, 0}, time.Now())).Required()
	gt.NoError(t, idx.Upsert(ctx, "owner-b", fragB, []float32{1, 0, 0}, time.Now())).Required()

	hits, err := idx.Search(ctx, "owner-a", []float32{1, 0, 0}, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(1)
	gt.Value(t, hits[0].FragmentID).Equal(fragA)

	// An owner with no fragments gets an empty result, not an error.
	hits, err = idx.Search(ctx, "owner-c", []float32{1, 0, 0}, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(0)
}

func TestIndexRanksBySimilarity(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	near := types.NewFragmentID()
	far := types.NewFragmentID()

	gt.NoError(t, idx.Upsert(ctx, "owner-a", near, []float32{1, 0, 0}, time.Now())).Required()
	gt.NoError(t, idx.Upsert(ctx, "owner-a", far, []float32{0, 1, 0}, time.Now())).Required()

	hits, err := idx.Search(ctx, "owner-a", []float32{1, 0.1, 0}, 2)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(2)
	gt.Value(t, hits[0].FragmentID).Equal(near)
	gt.Bool(t, hits[0].Score > hits[1].Score).True()
}

func TestIndexTieBreakPrefersRecentlyAccessed(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	stale := types.NewFragmentID()
	fresh := types.NewFragmentID()
	now := time.Now()

	// Identical vectors, only recency differs.
	gt.NoError(t, idx.Upsert(ctx, "owner-a", stale, []float32{1, 0, 0}, now.Add(-24*time.Hour))).Required()
	gt.NoError(t, idx.Upsert(ctx, "owner-a", fresh, []float32{1, 0, 0}, now)).Required()

	hits, err := idx.Search(ctx, "owner-a", []float32{1, 0, 0}, 1)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(1)
	gt.Value(t, hits[0].FragmentID).Equal(fresh)
}

func TestIndexUpsertReplacesVector(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	frag := types.NewFragmentID()
	gt.NoError(t, idx.Upsert(ctx, "owner-a", frag, []float32{1, 0, 0}, time.Now())).Required()
	gt.NoError(t, idx.Upsert(ctx, "owner-a", frag, []float32{0, 1, 0}, time.Now())).Required()

	hits, err := idx.Search(ctx, "owner-a", []float32{0, 1, 0}, 1)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(1)
	gt.Value(t, hits[0].FragmentID).Equal(frag)
	gt.Bool(t, hits[0].Score > 0.99).True()
}

func TestIndexRemove(t *testing.T) {
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	ctx := context.Background()

	frag := types.NewFragmentID()
	gt.NoError(t, idx.Upsert(ctx, "owner-a", frag, []float32{1, 0, 0}, time.Now())).Required()
	gt.NoError(t, idx.Remove(ctx, "owner-a", frag)).Required()

	hits, err := idx.Search(ctx, "owner-a", []float32{1, 0, 0}, 1)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(0)

	// Removing an unknown fragment or owner is a no-op.
	gt.NoError(t, idx.Remove(ctx, "owner-a", types.NewFragmentID()))
	gt.NoError(t, idx.Remove(ctx, "owner-x", frag))
}

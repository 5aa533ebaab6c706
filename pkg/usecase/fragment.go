package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

// FragmentUseCase handles ingestion and maintenance of memory fragments
type FragmentUseCase struct {
	repo      interfaces.Repository
	index     interfaces.EmbeddingIndex
	llmClient gollem.LLMClient
}

// NewFragmentUseCase creates a new FragmentUseCase instance
func NewFragmentUseCase(repo interfaces.Repository, index interfaces.EmbeddingIndex, llmClient gollem.LLMClient) *FragmentUseCase {
	return &FragmentUseCase{
		repo:      repo,
		index:     index,
		llmClient: llmClient,
	}
}

// Ingest stores a new fragment and indexes its embedding. When embedding
// generation fails the fragment is kept unindexed: it is visible in the
// store, absent from search results until the next reindex.
func (uc *FragmentUseCase) Ingest(ctx context.Context, ownerID types.OwnerID, text string, category types.FragmentCategory) (*model.Fragment, error) {
	if text == "" {
		return nil, goerr.New("fragment text is required")
	}
	if !category.IsValid() {
		return nil, goerr.New("invalid fragment category", goerr.V("category", category))
	}

	created, err := uc.repo.Fragment().Put(ctx, &model.Fragment{
		OwnerID:  ownerID,
		Text:     text,
		Category: category,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store fragment")
	}

	if err := uc.indexFragment(ctx, created); err != nil {
		logging.From(ctx).Warn("fragment stored but not indexed",
			"fragment_id", created.ID,
			"error", err.Error())
		return created, nil
	}

	return created, nil
}

// Supersede replaces a fragment with updated text. The old fragment is
// atomically marked inactive, removed from the index and preserved in the
// store for recall history.
func (uc *FragmentUseCase) Supersede(ctx context.Context, ownerID types.OwnerID, oldID types.FragmentID, text string, category types.FragmentCategory) (*model.Fragment, error) {
	if text == "" {
		return nil, goerr.New("fragment text is required")
	}
	if !category.IsValid() {
		return nil, goerr.New("invalid fragment category", goerr.V("category", category))
	}

	created, err := uc.repo.Fragment().Supersede(ctx, ownerID, oldID, &model.Fragment{
		OwnerID:  ownerID,
		Text:     text,
		Category: category,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to supersede fragment", goerr.V("fragmentID", oldID))
	}

	if uc.index != nil {
		if err := uc.index.Remove(ctx, ownerID, oldID); err != nil {
			logging.From(ctx).Warn("failed to drop superseded fragment from index",
				"fragment_id", oldID,
				"error", err.Error())
		}
	}

	if err := uc.indexFragment(ctx, created); err != nil {
		logging.From(ctx).Warn("fragment stored but not indexed",
			"fragment_id", created.ID,
			"error", err.Error())
	}

	return created, nil
}

// Get retrieves a fragment by ID
func (uc *FragmentUseCase) Get(ctx context.Context, ownerID types.OwnerID, id types.FragmentID) (*model.Fragment, error) {
	return uc.repo.Fragment().Get(ctx, ownerID, id)
}

// ListActive returns the owner's active fragments, newest first
func (uc *FragmentUseCase) ListActive(ctx context.Context, ownerID types.OwnerID) ([]*model.Fragment, error) {
	return uc.repo.Fragment().ListActiveByOwner(ctx, ownerID)
}

// Reindex re-embeds and re-indexes every active fragment of an owner that
// has no embedding yet. It returns the number of fragments indexed.
func (uc *FragmentUseCase) Reindex(ctx context.Context, ownerID types.OwnerID) (int, error) {
	fragments, err := uc.repo.Fragment().ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list fragments")
	}

	indexed := 0
	for _, fragment := range fragments {
		if fragment.Indexed() {
			if err := uc.index.Upsert(ctx, ownerID, fragment.ID, fragment.Embedding, fragment.LastAccessedAt); err != nil {
				return indexed, goerr.Wrap(err, "failed to re-add fragment to index", goerr.V("fragmentID", fragment.ID))
			}
			indexed++
			continue
		}

		if err := uc.indexFragment(ctx, fragment); err != nil {
			return indexed, goerr.Wrap(err, "failed to index fragment", goerr.V("fragmentID", fragment.ID))
		}
		indexed++
	}

	return indexed, nil
}

// indexFragment generates an embedding for the fragment text, persists it
// and upserts it into the index
func (uc *FragmentUseCase) indexFragment(ctx context.Context, fragment *model.Fragment) error {
	if uc.index == nil || uc.llmClient == nil {
		return goerr.New("embedding index is not configured")
	}

	embeddings, err := uc.llmClient.GenerateEmbedding(ctx, uc.index.Dimension(), []string{fragment.Text})
	if err != nil {
		return goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return goerr.New("embedding generation returned empty result")
	}

	vector := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vector[i] = float32(v)
	}

	if err := uc.repo.Fragment().UpdateEmbedding(ctx, fragment.OwnerID, fragment.ID, vector); err != nil {
		return goerr.Wrap(err, "failed to persist embedding")
	}
	if err := uc.index.Upsert(ctx, fragment.OwnerID, fragment.ID, vector, fragment.LastAccessedAt); err != nil {
		return goerr.Wrap(err, "failed to upsert embedding into index")
	}

	return nil
}

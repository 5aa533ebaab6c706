package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/recall"
)

// RecallUseCase answers free-form questions from the owner's stored
// memories through the recall pipeline
type RecallUseCase struct {
	pipeline *recall.Pipeline
}

// NewRecallUseCase creates a new RecallUseCase instance
func NewRecallUseCase(pipeline *recall.Pipeline) *RecallUseCase {
	return &RecallUseCase{
		pipeline: pipeline,
	}
}

// Recall runs one recall request for the verified owner
func (uc *RecallUseCase) Recall(ctx context.Context, ownerID types.OwnerID, rawText string) (*model.RecallResult, error) {
	if ownerID == "" {
		return nil, goerr.New("owner ID is required")
	}

	result, err := uc.pipeline.Execute(ctx, model.RecallQuery{
		OwnerID:   ownerID,
		RawText:   rawText,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "recall request failed", goerr.V("ownerID", ownerID))
	}

	return result, nil
}

package recall_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/repository/memory"
	"github.com/memori-lab/memoriai/pkg/service/eventbus"
	"github.com/memori-lab/memoriai/pkg/service/guardrail"
	"github.com/memori-lab/memoriai/pkg/service/index"
	"github.com/memori-lab/memoriai/pkg/service/recall"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"Mara is your granddaughter. She visits on Sundays."},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn        func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
	embeddingCalls      int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.embeddingCalls++
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	return [][]float64{{1, 0, 0}}, nil
}

type recallFixture struct {
	repo  *memory.Memory
	index *index.Index
	llm   *mockLLMClient
	bus   *eventbus.Bus
}

func newRecallPipeline(t *testing.T, llm *mockLLMClient, cfg recall.Config) (*recall.Pipeline, *recallFixture) {
	t.Helper()

	repo := memory.New()
	idx, err := index.New(3)
	gt.NoError(t, err).Required()
	guard, err := guardrail.New(nil)
	gt.NoError(t, err).Required()
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	pipeline, err := recall.New(repo, idx, llm, guard, bus, cfg)
	gt.NoError(t, err).Required()

	return pipeline, &recallFixture{repo: repo, index: idx, llm: llm, bus: bus}
}

func storeFragment(t *testing.T, f *recallFixture, owner types.OwnerID, text string, vector []float32) *model.Fragment {
	t.Helper()
	ctx := context.Background()

	created, err := f.repo.Fragment().Put(ctx, &model.Fragment{
		OwnerID:  owner,
		Text:     text,
		Category: types.FragmentCategoryPerson,
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, f.index.Upsert(ctx, owner, created.ID, vector, created.CreatedAt)).Required()
	return created
}

func TestRecallGroundedAnswer(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{}
	pipeline, f := newRecallPipeline(t, llm, recall.Config{})
	events := f.bus.Subscribe("test")

	frag := storeFragment(t, f, owner, "Mara is your granddaughter, she visits on Sundays", []float32{1, 0, 0})

	result, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID:    owner,
		RawText:    "who is Mara?",
		Timestamp:  time.Now(),
	})
	gt.NoError(t, err).Required()

	gt.Value(t, result.Verdict).Equal(types.GuardrailVerdictAllowed)
	gt.Bool(t, strings.Contains(result.AnswerText, "granddaughter")).True()
	gt.Array(t, result.CitedFragmentIDs).Length(1)
	gt.Value(t, result.CitedFragmentIDs[0]).Equal(frag.ID)

	// Recency of the cited fragment is refreshed.
	touched, err := f.repo.Fragment().Get(ctx, owner, frag.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, touched.LastAccessedAt.IsZero()).False()

	event := <-events
	gt.Value(t, event.Type).Equal(types.EventTypeRecall)
	gt.Value(t, event.OwnerID).Equal(owner)
	gt.Value(t, event.Payload["verdict"]).Equal("allowed")
}

func TestRecallRefreshesIndexRecency(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{}
	pipeline, f := newRecallPipeline(t, llm, recall.Config{})

	// Cited fragment indexed two hours ago.
	vector := []float32{1, 0, 0}
	cited := storeFragment(t, f, owner, "Mara is your granddaughter", vector)
	gt.NoError(t, f.repo.Fragment().UpdateEmbedding(ctx, owner, cited.ID, vector)).Required()
	gt.NoError(t, f.index.Upsert(ctx, owner, cited.ID, vector, time.Now().Add(-2*time.Hour))).Required()

	_, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID: owner,
		RawText: "who is Mara?",
	})
	gt.NoError(t, err).Required()

	// An identical vector indexed an hour ago. The recall refreshed the
	// cited fragment's index recency, so it still wins the tie-break.
	rival, err := f.repo.Fragment().Put(ctx, &model.Fragment{
		OwnerID:  owner,
		Text:     "an unrelated note",
		Category: types.FragmentCategoryFact,
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, f.index.Upsert(ctx, owner, rival.ID, vector, time.Now().Add(-time.Hour))).Required()

	hits, err := f.index.Search(ctx, owner, vector, 2)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(2)
	gt.Value(t, hits[0].FragmentID).Equal(cited.ID)
}

func TestRecallWithoutMatchingMemory(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{"I don't have a memory about that. You could ask your caregiver."}}, nil
				},
			}, nil
		},
	}
	pipeline, _ := newRecallPipeline(t, llm, recall.Config{})

	// Nothing stored: the pipeline still answers, with zero citations.
	result, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID: owner,
		RawText: "where did I put my keys?",
	})
	gt.NoError(t, err).Required()
	gt.Array(t, result.CitedFragmentIDs).Length(0)
	gt.Value(t, result.Verdict).Equal(types.GuardrailVerdictAllowed)
}

func TestRecallBlockedByGuardrail(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{"You probably have dementia, based on these lapses."}}, nil
				},
			}, nil
		},
	}
	pipeline, f := newRecallPipeline(t, llm, recall.Config{})
	events := f.bus.Subscribe("test")

	result, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID: owner,
		RawText: "why do I keep forgetting things?",
	})
	gt.Bool(t, errors.Is(err, types.ErrGuardrailBlocked)).True()
	gt.Value(t, result).Nil()

	event := <-events
	gt.Value(t, event.Type).Equal(types.EventTypeRecallFailed)
	gt.Value(t, event.Payload["state"]).Equal(types.RecallStateFiltered.String())
}

func TestRecallRewrittenByGuardrail(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{"You should take 20 mg before bed."}}, nil
				},
			}, nil
		},
	}
	pipeline, _ := newRecallPipeline(t, llm, recall.Config{})

	result, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID: owner,
		RawText: "what did the doctor say about my pills?",
	})
	gt.NoError(t, err).Required()
	gt.Value(t, result.Verdict).Equal(types.GuardrailVerdictRewritten)
	gt.Value(t, result.AnswerText).Equal(guardrail.DefaultRewriteAnswer)
}

func TestRecallSkipsSupersededCitations(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{}
	pipeline, f := newRecallPipeline(t, llm, recall.Config{})

	old := storeFragment(t, f, owner, "Dr. Okafor's office is on Pine Street", []float32{1, 0, 0})

	// Supersede in the store while the old vector is still indexed.
	replacement, err := f.repo.Fragment().Supersede(ctx, owner, old.ID, &model.Fragment{
		OwnerID:  owner,
		Text:     "Dr. Okafor's office moved to Birch Avenue",
		Category: types.FragmentCategoryFact,
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, f.index.Upsert(ctx, owner, replacement.ID, []float32{1, 0, 0}, time.Now())).Required()

	result, err := pipeline.Execute(ctx, model.RecallQuery{
		OwnerID: owner,
		RawText: "where is the doctor's office?",
	})
	gt.NoError(t, err).Required()
	gt.Array(t, result.CitedFragmentIDs).Length(1)
	gt.Value(t, result.CitedFragmentIDs[0]).Equal(replacement.ID)
}

func TestRecallQueryValidation(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	llm := &mockLLMClient{}
	pipeline, _ := newRecallPipeline(t, llm, recall.Config{MaxQueryLen: 10})

	_, err := pipeline.Execute(ctx, model.RecallQuery{OwnerID: owner, RawText: ""})
	gt.Bool(t, errors.Is(err, types.ErrEmbeddingError)).True()

	_, err = pipeline.Execute(ctx, model.RecallQuery{OwnerID: owner, RawText: strings.Repeat("a", 11)})
	gt.Bool(t, errors.Is(err, types.ErrEmbeddingError)).True()

	gt.Value(t, llm.embeddingCalls).Equal(0)
}

func TestRecallInferenceRetry(t *testing.T) {
	const owner = types.OwnerID("owner-1")
	ctx := context.Background()

	t.Run("second attempt succeeds", func(t *testing.T) {
		attempts := 0
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						attempts++
						if attempts == 1 {
							return nil, errors.New("transient upstream failure")
						}
						return &gollem.Response{Texts: []string{"All good now."}}, nil
					},
				}, nil
			},
		}
		pipeline, _ := newRecallPipeline(t, llm, recall.Config{RetryBackoff: time.Millisecond})

		result, err := pipeline.Execute(ctx, model.RecallQuery{OwnerID: owner, RawText: "hello?"})
		gt.NoError(t, err).Required()
		gt.Value(t, result.AnswerText).Equal("All good now.")
		gt.Value(t, attempts).Equal(2)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		attempts := 0
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						attempts++
						return nil, errors.New("upstream down")
					},
				}, nil
			},
		}
		pipeline, f := newRecallPipeline(t, llm, recall.Config{RetryBackoff: time.Millisecond})
		events := f.bus.Subscribe("test")

		_, err := pipeline.Execute(ctx, model.RecallQuery{OwnerID: owner, RawText: "hello?"})
		gt.Bool(t, errors.Is(err, types.ErrInferenceUnavailable)).True()
		gt.Value(t, attempts).Equal(2)

		event := <-events
		gt.Value(t, event.Type).Equal(types.EventTypeRecallFailed)
		gt.Value(t, event.Payload["state"]).Equal(types.RecallStateComposed.String())
	})
}

func TestRecallCancelledContext(t *testing.T) {
	const owner = types.OwnerID("owner-1")

	llm := &mockLLMClient{}
	pipeline, _ := newRecallPipeline(t, llm, recall.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Execute(ctx, model.RecallQuery{OwnerID: owner, RawText: "who is Mara?"})
	gt.Error(t, err)
}

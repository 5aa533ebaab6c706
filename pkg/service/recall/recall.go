package recall

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/guardrail"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

//go:embed prompt/recall_system.md
var systemPromptTmpl string

var systemPrompt = template.Must(template.New("recall_system").Parse(systemPromptTmpl))

const (
	// DefaultTopK is the number of candidate fragments retrieved per query
	DefaultTopK = 5
	// DefaultMaxQueryLen bounds the raw query text accepted for embedding
	DefaultMaxQueryLen = 2000
	// DefaultInferenceTimeout bounds a single call to the LLM boundary
	DefaultInferenceTimeout = 30 * time.Second
	// DefaultRetryBackoff is the base delay before the single inference retry
	DefaultRetryBackoff = 2 * time.Second
)

// Config tunes the pipeline. Zero values fall back to the defaults above.
type Config struct {
	TopK             int
	MaxQueryLen      int
	InferenceTimeout time.Duration
	RetryBackoff     time.Duration
}

func (c Config) normalize() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxQueryLen <= 0 {
		c.MaxQueryLen = DefaultMaxQueryLen
	}
	if c.InferenceTimeout <= 0 {
		c.InferenceTimeout = DefaultInferenceTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

// Pipeline turns a free-form query into a guardrail-filtered answer grounded
// on the owner's stored fragments. Each request walks the stages
// received -> embedded -> retrieved -> composed -> inferred -> filtered ->
// delivered; any failure short-circuits to the failed state.
type Pipeline struct {
	repo      interfaces.Repository
	index     interfaces.EmbeddingIndex
	llmClient gollem.LLMClient
	guard     *guardrail.Service
	bus       interfaces.EventBus
	config    Config
}

// New creates a recall pipeline
func New(repo interfaces.Repository, index interfaces.EmbeddingIndex, llmClient gollem.LLMClient, guard *guardrail.Service, bus interfaces.EventBus, config Config) (*Pipeline, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if index == nil {
		return nil, goerr.New("embedding index is required")
	}
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	if guard == nil {
		return nil, goerr.New("guardrail service is required")
	}

	return &Pipeline{
		repo:      repo,
		index:     index,
		llmClient: llmClient,
		guard:     guard,
		bus:       bus,
		config:    config.normalize(),
	}, nil
}

type promptContext struct {
	Fragments []*model.Fragment
}

// Execute runs one recall request to completion. The returned result is nil
// exactly when the error is non-nil; a guardrail veto surfaces as
// types.ErrGuardrailBlocked. An audit event is emitted for every request,
// whatever the outcome.
func (p *Pipeline) Execute(ctx context.Context, query model.RecallQuery) (*model.RecallResult, error) {
	state := types.RecallStateReceived

	result, err := p.run(ctx, query, &state)
	if err != nil {
		p.publish(ctx, model.NewAuditEvent(types.EventTypeRecallFailed, query.OwnerID, map[string]any{
			"state": state.String(),
			"error": err.Error(),
		}))
		return nil, err
	}

	state = types.RecallStateDelivered
	p.publish(ctx, model.NewAuditEvent(types.EventTypeRecall, query.OwnerID, map[string]any{
		"state":     state.String(),
		"verdict":   result.Verdict.String(),
		"citations": len(result.CitedFragmentIDs),
	}))

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, query model.RecallQuery, state *types.RecallState) (*model.RecallResult, error) {
	logger := logging.From(ctx)

	// received -> embedded
	vector, err := p.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	*state = types.RecallStateEmbedded

	// embedded -> retrieved
	hits, err := p.index.Search(ctx, query.OwnerID, vector, p.config.TopK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search embedding index")
	}
	*state = types.RecallStateRetrieved

	// retrieved -> composed: an empty hit set is valid and routes to the
	// "no memory found" prompt instead of failing.
	fragments, citations, err := p.collectFragments(ctx, query.OwnerID, hits)
	if err != nil {
		return nil, err
	}

	prompt, err := p.composePrompt(fragments)
	if err != nil {
		return nil, err
	}
	*state = types.RecallStateComposed

	// Cancellation is honored up to the inference dispatch; afterwards the
	// in-flight call is best-effort and its result is discarded via ctx.
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "recall request cancelled before inference")
	}

	// composed -> inferred
	answer, err := p.infer(ctx, prompt, query.RawText)
	if err != nil {
		return nil, err
	}
	*state = types.RecallStateInferred

	// inferred -> filtered
	verdict, deliverable := p.guard.Evaluate(answer)
	*state = types.RecallStateFiltered
	if verdict == types.GuardrailVerdictBlocked {
		return nil, goerr.Wrap(types.ErrGuardrailBlocked, "generated answer matched blocked-content policy")
	}

	// Recall refreshes recency of the cited fragments; a failure here must
	// not void an already filtered answer. The index metadata is refreshed
	// alongside so the recency tie-break sees the new timestamp without
	// waiting for a reindex.
	touchedAt := time.Now().UTC()
	if err := p.repo.Fragment().TouchAccess(ctx, query.OwnerID, citations); err != nil {
		logger.Warn("failed to touch cited fragments", "error", err.Error())
	} else {
		for _, fragment := range fragments {
			if !fragment.Indexed() {
				continue
			}
			if err := p.index.Upsert(ctx, query.OwnerID, fragment.ID, fragment.Embedding, touchedAt); err != nil {
				logger.Warn("failed to refresh index recency",
					"fragment_id", fragment.ID,
					"error", err.Error())
			}
		}
	}

	return &model.RecallResult{
		AnswerText:       deliverable,
		CitedFragmentIDs: citations,
		Verdict:          verdict,
	}, nil
}

// embedQuery embeds the raw query text in the same vector space as stored
// fragments
func (p *Pipeline) embedQuery(ctx context.Context, query model.RecallQuery) ([]float32, error) {
	if query.RawText == "" {
		return nil, goerr.Wrap(types.ErrEmbeddingError, "query text is empty")
	}
	if len(query.RawText) > p.config.MaxQueryLen {
		return nil, goerr.Wrap(types.ErrEmbeddingError, "query text exceeds configured length",
			goerr.V("length", len(query.RawText)),
			goerr.V("max", p.config.MaxQueryLen),
		)
	}

	embeddings, err := p.llmClient.GenerateEmbedding(ctx, p.index.Dimension(), []string{query.RawText})
	if err != nil {
		return nil, goerr.Wrap(types.ErrEmbeddingError, "failed to embed query text")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(types.ErrEmbeddingError, "embedding generation returned empty result")
	}

	vector := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vector[i] = float32(v)
	}
	return vector, nil
}

// collectFragments resolves search hits to fragment records. A hit whose
// fragment disappeared from the store (index lagging behind a supersede) is
// skipped, never an error.
func (p *Pipeline) collectFragments(ctx context.Context, ownerID types.OwnerID, hits []interfaces.Hit) ([]*model.Fragment, []types.FragmentID, error) {
	fragments := make([]*model.Fragment, 0, len(hits))
	citations := make([]types.FragmentID, 0, len(hits))

	for _, hit := range hits {
		fragment, err := p.repo.Fragment().Get(ctx, ownerID, hit.FragmentID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return nil, nil, goerr.Wrap(err, "failed to load cited fragment", goerr.V("fragmentID", hit.FragmentID))
		}
		if !fragment.Active {
			continue
		}

		fragments = append(fragments, fragment)
		citations = append(citations, fragment.ID)
	}

	return fragments, citations, nil
}

// composePrompt renders the system prompt strictly from retrieved fragment
// text; no ungrounded facts are injected.
func (p *Pipeline) composePrompt(fragments []*model.Fragment) (string, error) {
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, promptContext{Fragments: fragments}); err != nil {
		return "", goerr.Wrap(err, "failed to render recall prompt")
	}
	return buf.String(), nil
}

// infer calls the LLM boundary with a bounded timeout, retrying once with
// backoff before surfacing types.ErrInferenceUnavailable.
func (p *Pipeline) infer(ctx context.Context, prompt, queryText string) (string, error) {
	logger := logging.From(ctx)

	answer, err := p.inferOnce(ctx, prompt, queryText)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil {
		return "", goerr.Wrap(ctx.Err(), "recall request cancelled during inference")
	}

	logger.Warn("inference attempt failed, retrying once", "error", err.Error(), "backoff", p.config.RetryBackoff.String())
	select {
	case <-time.After(p.config.RetryBackoff):
	case <-ctx.Done():
		return "", goerr.Wrap(ctx.Err(), "recall request cancelled during inference backoff")
	}

	answer, err = p.inferOnce(ctx, prompt, queryText)
	if err != nil {
		return "", goerr.Wrap(types.ErrInferenceUnavailable, "inference failed after retry")
	}
	return answer, nil
}

func (p *Pipeline) inferOnce(ctx context.Context, prompt, queryText string) (string, error) {
	ictx, cancel := context.WithTimeout(ctx, p.config.InferenceTimeout)
	defer cancel()

	session, err := p.llmClient.NewSession(ictx,
		gollem.WithSessionSystemPrompt(prompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ictx, gollem.Text(queryText))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned no text")
	}

	return resp.Texts[0], nil
}

func (p *Pipeline) publish(ctx context.Context, event model.AuditEvent) {
	if p.bus != nil {
		p.bus.Publish(ctx, event)
	}
}

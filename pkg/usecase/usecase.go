package usecase

import (
	"github.com/m-mizutani/gollem"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/service/guardrail"
	"github.com/memori-lab/memoriai/pkg/service/recall"
)

type UseCases struct {
	repo      interfaces.Repository
	index     interfaces.EmbeddingIndex
	llmClient gollem.LLMClient
	guard     *guardrail.Service
	bus       interfaces.EventBus
	spawner   ReminderSpawner
	recallCfg recall.Config

	Fragment *FragmentUseCase
	Recall   *RecallUseCase
	Reminder *ReminderUseCase
}

type Option func(*UseCases)

func WithIndex(index interfaces.EmbeddingIndex) Option {
	return func(uc *UseCases) {
		uc.index = index
	}
}

func WithLLMClient(llmClient gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = llmClient
	}
}

func WithGuardrail(guard *guardrail.Service) Option {
	return func(uc *UseCases) {
		uc.guard = guard
	}
}

func WithEventBus(bus interfaces.EventBus) Option {
	return func(uc *UseCases) {
		uc.bus = bus
	}
}

func WithReminderSpawner(spawner ReminderSpawner) Option {
	return func(uc *UseCases) {
		uc.spawner = spawner
	}
}

func WithRecallConfig(cfg recall.Config) Option {
	return func(uc *UseCases) {
		uc.recallCfg = cfg
	}
}

func New(repo interfaces.Repository, opts ...Option) (*UseCases, error) {
	uc := &UseCases{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Fragment = NewFragmentUseCase(uc.repo, uc.index, uc.llmClient)
	uc.Reminder = NewReminderUseCase(uc.repo, uc.bus, uc.spawner)

	// Recall requires the full pipeline; CLI modes that only manage
	// reminders run without it.
	if uc.index != nil && uc.llmClient != nil && uc.guard != nil {
		pipeline, err := recall.New(uc.repo, uc.index, uc.llmClient, uc.guard, uc.bus, uc.recallCfg)
		if err != nil {
			return nil, err
		}
		uc.Recall = NewRecallUseCase(pipeline)
	}

	return uc, nil
}

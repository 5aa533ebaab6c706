package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/memori-lab/memoriai/pkg/cli/config"
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/usecase"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
	"github.com/memori-lab/memoriai/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdRecall() *cli.Command {
	var ownerID string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var indexCfg config.Index
	var guardCfg config.Guardrail
	var recallCfg config.Recall

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner ID whose memory is queried",
			Required:    true,
			Sources:     cli.EnvVars("MEMORIAI_OWNER"),
			Destination: &ownerID,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, indexCfg.Flags()...)
	flags = append(flags, guardCfg.Flags()...)
	flags = append(flags, recallCfg.Flags()...)

	return &cli.Command{
		Name:      "recall",
		Aliases:   []string{"r"},
		Usage:     "Ask a question against the stored memory fragments",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := c.Args().First()
			if question == "" {
				return goerr.New("question argument is required")
			}

			uc, repo, err := buildRecallUseCases(ctx, &repoCfg, &geminiCfg, &indexCfg, &guardCfg, &recallCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			owner := types.OwnerID(ownerID)

			// The index lives in process, rebuild it from the repository
			// before querying.
			indexed, err := uc.Fragment.Reindex(ctx, owner)
			if err != nil {
				return goerr.Wrap(err, "failed to rebuild embedding index")
			}
			logging.Default().Debug("index rebuilt", "fragments", indexed)

			result, err := uc.Recall.Recall(ctx, owner, question)
			if err != nil {
				return err
			}

			color.New(color.FgCyan, color.Bold).Printf("Q: %s\n", question)
			color.New(color.FgWhite).Printf("A: %s\n", result.AnswerText)
			if result.Verdict == types.GuardrailVerdictRewritten {
				color.New(color.FgYellow).Println("(answer adjusted by guardrail)")
			}
			if len(result.CitedFragmentIDs) > 0 {
				color.New(color.FgHiBlack).Println("cited fragments:")
				for _, id := range result.CitedFragmentIDs {
					fmt.Printf("  - %s\n", id)
				}
			}

			return nil
		},
	}
}

func buildRecallUseCases(ctx context.Context, repoCfg *config.Repository, geminiCfg *config.Gemini, indexCfg *config.Index, guardCfg *config.Guardrail, recallCfg *config.Recall) (*usecase.UseCases, interfaces.Repository, error) {
	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini client")
	}
	if llmClient == nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.New("gemini-project is required for recall")
	}

	idx, err := indexCfg.Configure()
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to configure embedding index")
	}

	guard, err := guardCfg.Configure()
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to configure guardrail")
	}

	uc, err := usecase.New(repo,
		usecase.WithIndex(idx),
		usecase.WithLLMClient(llmClient),
		usecase.WithGuardrail(guard),
		usecase.WithRecallConfig(recallCfg.Config()),
	)
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to initialize use cases")
	}

	return uc, repo, nil
}

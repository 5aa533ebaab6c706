package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/memori-lab/memoriai/pkg/cli/config"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/usecase"
	"github.com/memori-lab/memoriai/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var ownerID string
	var category string
	var supersedes string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var indexCfg config.Index

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner ID the fragment belongs to",
			Required:    true,
			Sources:     cli.EnvVars("MEMORIAI_OWNER"),
			Destination: &ownerID,
		},
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Fragment category (person, event, routine or fact)",
			Value:       string(types.FragmentCategoryFact),
			Destination: &category,
		},
		&cli.StringFlag{
			Name:        "supersedes",
			Usage:       "ID of an existing fragment this one corrects",
			Destination: &supersedes,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, indexCfg.Flags()...)

	return &cli.Command{
		Name:      "ingest",
		Aliases:   []string{"i"},
		Usage:     "Store a memory fragment",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := c.Args().First()
			if text == "" {
				return goerr.New("text argument is required")
			}

			cat, err := types.ParseFragmentCategory(category)
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			ucOpts := []usecase.Option{}

			// Embedding is optional here. Without Gemini the fragment is
			// stored unindexed and picked up by a later reindex.
			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}
			if llmClient != nil {
				idx, err := indexCfg.Configure()
				if err != nil {
					return goerr.Wrap(err, "failed to configure embedding index")
				}
				ucOpts = append(ucOpts,
					usecase.WithIndex(idx),
					usecase.WithLLMClient(llmClient),
				)
			}

			uc, err := usecase.New(repo, ucOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			owner := types.OwnerID(ownerID)

			var fragment *model.Fragment
			if supersedes != "" {
				fragment, err = uc.Fragment.Supersede(ctx, owner, types.FragmentID(supersedes), text, cat)
			} else {
				fragment, err = uc.Fragment.Ingest(ctx, owner, text, cat)
			}
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Printf("stored fragment %s", fragment.ID)
			if supersedes != "" {
				color.New(color.FgHiBlack).Printf(" (supersedes %s)", supersedes)
			}
			color.New(color.FgGreen).Println()
			return nil
		},
	}
}

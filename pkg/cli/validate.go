package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/memori-lab/memoriai/pkg/service/guardrail"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var policyPath string

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a guardrail policy file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "guardrail-policy",
				Usage:       "Path to guardrail policy TOML file (built-in policy if empty)",
				Sources:     cli.EnvVars("MEMORIAI_GUARDRAIL_POLICY"),
				Destination: &policyPath,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			policy := guardrail.DefaultPolicy()
			if policyPath != "" {
				p, err := guardrail.LoadPolicy(policyPath)
				if err != nil {
					color.New(color.FgRed).Printf("policy invalid: %v\n", err)
					return goerr.Wrap(err, "policy validation failed", goerr.V("path", policyPath))
				}
				policy = p
			}

			if _, err := guardrail.New(policy); err != nil {
				color.New(color.FgRed).Printf("policy invalid: %v\n", err)
				return goerr.Wrap(err, "policy validation failed")
			}

			color.New(color.FgGreen).Println("policy OK")
			for _, rule := range policy.Rules {
				color.New(color.FgHiBlack).Printf("  %-9s %s\n", rule.Verdict, rule.Pattern)
			}
			return nil
		},
	}
}

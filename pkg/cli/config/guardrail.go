package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/service/guardrail"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Guardrail holds configuration for the answer filtering policy
type Guardrail struct {
	policyPath string
}

// Flags returns CLI flags for guardrail configuration
func (g *Guardrail) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "guardrail-policy",
			Usage:       "Path to guardrail policy TOML file (built-in policy if empty)",
			Category:    "Guardrail",
			Sources:     cli.EnvVars("MEMORIAI_GUARDRAIL_POLICY"),
			Destination: &g.policyPath,
		},
	}
}

// PolicyPath returns the configured policy file path
func (g *Guardrail) PolicyPath() string {
	return g.policyPath
}

// Configure loads the policy file (or falls back to the built-in policy)
// and returns a guardrail service.
func (g *Guardrail) Configure() (*guardrail.Service, error) {
	var policy *guardrail.Policy
	if g.policyPath != "" {
		p, err := guardrail.LoadPolicy(g.policyPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load guardrail policy", goerr.V("path", g.policyPath))
		}
		policy = p
		logging.Default().Info("Loaded guardrail policy", "path", g.policyPath, "rules", len(p.Rules))
	} else {
		logging.Default().Info("Using built-in guardrail policy")
	}

	svc, err := guardrail.New(policy)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create guardrail service")
	}
	return svc, nil
}

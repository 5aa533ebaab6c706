package guardrail

import (
	"os"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
)

// DefaultRewriteAnswer replaces generated text when a rule with the
// rewritten verdict matches.
const DefaultRewriteAnswer = "I can't help with that. Please ask your caregiver."

// Rule maps a content pattern to a verdict. Rules are evaluated in order;
// the first match wins.
type Rule struct {
	Pattern string `toml:"pattern"`
	Verdict string `toml:"verdict"`

	re *regexp.Regexp
}

// Policy is the data-driven guardrail rule set, loaded once at startup.
type Policy struct {
	RewriteAnswer string `toml:"rewrite_answer"`
	Rules         []Rule `toml:"rule"`
}

// Validate compiles all rule patterns and checks verdicts
func (p *Policy) Validate() error {
	for i := range p.Rules {
		rule := &p.Rules[i]
		verdict, err := types.ParseGuardrailVerdict(rule.Verdict)
		if err != nil || verdict == types.GuardrailVerdictAllowed {
			return goerr.New("rule verdict must be rewritten or blocked",
				goerr.V("pattern", rule.Pattern),
				goerr.V("verdict", rule.Verdict),
			)
		}

		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return goerr.Wrap(err, "invalid rule pattern", goerr.V("pattern", rule.Pattern))
		}
		rule.re = re
	}
	return nil
}

// DefaultPolicy blocks diagnostic and treatment claims, the content this
// assistant must never deliver to a memory-impaired user.
func DefaultPolicy() *Policy {
	return &Policy{
		RewriteAnswer: DefaultRewriteAnswer,
		Rules: []Rule{
			{Pattern: `(?i)\byou (?:probably |likely )?have (?:a |an )?(?:dementia|alzheimer|depression|infection|cancer|stroke)`, Verdict: string(types.GuardrailVerdictBlocked)},
			{Pattern: `(?i)\b(?:diagnos\w+|prognosis)\b`, Verdict: string(types.GuardrailVerdictBlocked)},
			{Pattern: `(?i)\b(?:increase|decrease|double|skip|stop taking)\b.{0,40}\b(?:dose|dosage|medication|pills?)\b`, Verdict: string(types.GuardrailVerdictBlocked)},
			{Pattern: `(?i)\byou should (?:take|start|stop)\b.{0,40}\b(?:mg|milligrams?|tablets?|pills?)\b`, Verdict: string(types.GuardrailVerdictRewritten)},
			{Pattern: `(?i)\b(?:treat(?:ment)?|cure|therapy) (?:for|of) your\b`, Verdict: string(types.GuardrailVerdictRewritten)},
		},
	}
}

// LoadPolicy reads a TOML policy file and validates it
func LoadPolicy(path string) (*Policy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read guardrail policy", goerr.V("path", path))
	}

	var policy Policy
	if err := toml.Unmarshal(data, &policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse guardrail policy", goerr.V("path", path))
	}
	if policy.RewriteAnswer == "" {
		policy.RewriteAnswer = DefaultRewriteAnswer
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "guardrail policy validation failed", goerr.V("path", path))
	}

	return &policy, nil
}

// Service filters generated text against the disallowed-content policy.
// It is a read-time filter: memory is never mutated or un-indexed on a veto.
type Service struct {
	policy *Policy
}

// New creates a guardrail service with a validated policy
func New(policy *Policy) (*Service, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Service{policy: policy}, nil
}

// Evaluate returns the verdict for the generated text and the text that may
// be delivered. For blocked, the returned text is empty: nothing reaches
// the user.
func (s *Service) Evaluate(text string) (types.GuardrailVerdict, string) {
	for i := range s.policy.Rules {
		rule := &s.policy.Rules[i]
		if !rule.re.MatchString(text) {
			continue
		}

		switch types.GuardrailVerdict(rule.Verdict) {
		case types.GuardrailVerdictBlocked:
			return types.GuardrailVerdictBlocked, ""
		case types.GuardrailVerdictRewritten:
			return types.GuardrailVerdictRewritten, s.policy.RewriteAnswer
		}
	}

	return types.GuardrailVerdictAllowed, text
}

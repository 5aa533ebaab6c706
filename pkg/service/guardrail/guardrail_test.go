package guardrail_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/memori-lab/memoriai/pkg/domain/types"
	"github.com/memori-lab/memoriai/pkg/service/guardrail"
)

func TestDefaultPolicyVerdicts(t *testing.T) {
	svc, err := guardrail.New(nil)
	gt.NoError(t, err).Required()

	t.Run("benign answer passes unchanged", func(t *testing.T) {
		text := "Mara is your granddaughter. She visited you last Sunday."
		verdict, out := svc.Evaluate(text)
		gt.Value(t, verdict).Equal(types.GuardrailVerdictAllowed)
		gt.Value(t, out).Equal(text)
	})

	t.Run("diagnostic claim is blocked with no text", func(t *testing.T) {
		verdict, out := svc.Evaluate("Based on your memory lapses, you probably have dementia.")
		gt.Value(t, verdict).Equal(types.GuardrailVerdictBlocked)
		gt.Value(t, out).Equal("")
	})

	t.Run("dosage change is blocked", func(t *testing.T) {
		verdict, out := svc.Evaluate("You could double your dose tonight to catch up.")
		gt.Value(t, verdict).Equal(types.GuardrailVerdictBlocked)
		gt.Value(t, out).Equal("")
	})

	t.Run("medication advice is rewritten", func(t *testing.T) {
		verdict, out := svc.Evaluate("You should take 20 mg before bed.")
		gt.Value(t, verdict).Equal(types.GuardrailVerdictRewritten)
		gt.Value(t, out).Equal(guardrail.DefaultRewriteAnswer)
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Run("allowed verdict is rejected", func(t *testing.T) {
		policy := &guardrail.Policy{
			Rules: []guardrail.Rule{
				{Pattern: "x", Verdict: "allowed"},
			},
		}
		gt.Error(t, policy.Validate())
	})

	t.Run("unknown verdict is rejected", func(t *testing.T) {
		policy := &guardrail.Policy{
			Rules: []guardrail.Rule{
				{Pattern: "x", Verdict: "warn"},
			},
		}
		gt.Error(t, policy.Validate())
	})

	t.Run("invalid regexp is rejected", func(t *testing.T) {
		policy := &guardrail.Policy{
			Rules: []guardrail.Rule{
				{Pattern: "(", Verdict: "blocked"},
			},
		}
		gt.Error(t, policy.Validate())
	})
}

func TestLoadPolicy(t *testing.T) {
	t.Run("loads and applies custom rules", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.toml")
		content := `
rewrite_answer = "Let's ask your caregiver about that."

[[rule]]
pattern = '(?i)\bsurgery\b'
verdict = "blocked"

[[rule]]
pattern = '(?i)\bvitamins?\b'
verdict = "rewritten"
`
		gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()

		policy, err := guardrail.LoadPolicy(path)
		gt.NoError(t, err).Required()
		gt.Array(t, policy.Rules).Length(2)

		svc, err := guardrail.New(policy)
		gt.NoError(t, err).Required()

		verdict, out := svc.Evaluate("The doctor mentioned surgery options.")
		gt.Value(t, verdict).Equal(types.GuardrailVerdictBlocked)
		gt.Value(t, out).Equal("")

		verdict, out = svc.Evaluate("Maybe try some vitamins in the morning.")
		gt.Value(t, verdict).Equal(types.GuardrailVerdictRewritten)
		gt.Value(t, out).Equal("Let's ask your caregiver about that.")
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := guardrail.LoadPolicy(filepath.Join(t.TempDir(), "absent.toml"))
		gt.Error(t, err)
	})

	t.Run("invalid rule fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.toml")
		content := `
[[rule]]
pattern = "x"
verdict = "allowed"
`
		gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()

		_, err := guardrail.LoadPolicy(path)
		gt.Error(t, err)
	})
}

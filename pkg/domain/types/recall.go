package types

import "fmt"

// GuardrailVerdict is the outcome of filtering generated text against
// the disallowed-content policy
type GuardrailVerdict string

const (
	// GuardrailVerdictAllowed passes the generated text through unchanged
	GuardrailVerdictAllowed GuardrailVerdict = "allowed"
	// GuardrailVerdictRewritten substitutes a safe template answer
	GuardrailVerdictRewritten GuardrailVerdict = "rewritten"
	// GuardrailVerdictBlocked rejects the request; no content reaches the user
	GuardrailVerdictBlocked GuardrailVerdict = "blocked"
)

// IsValid checks if the guardrail verdict is valid
func (v GuardrailVerdict) IsValid() bool {
	switch v {
	case GuardrailVerdictAllowed, GuardrailVerdictRewritten, GuardrailVerdictBlocked:
		return true
	default:
		return false
	}
}

// String returns the string representation of the guardrail verdict
func (v GuardrailVerdict) String() string {
	return string(v)
}

// ParseGuardrailVerdict parses a string into a GuardrailVerdict
func ParseGuardrailVerdict(s string) (GuardrailVerdict, error) {
	verdict := GuardrailVerdict(s)
	if !verdict.IsValid() {
		return "", fmt.Errorf("invalid guardrail verdict: %s", s)
	}
	return verdict, nil
}

// RecallState represents the stage of a recall request in flight
type RecallState string

const (
	RecallStateReceived  RecallState = "received"
	RecallStateEmbedded  RecallState = "embedded"
	RecallStateRetrieved RecallState = "retrieved"
	RecallStateComposed  RecallState = "composed"
	RecallStateInferred  RecallState = "inferred"
	RecallStateFiltered  RecallState = "filtered"
	RecallStateDelivered RecallState = "delivered"
	RecallStateFailed    RecallState = "failed"
)

// String returns the string representation of the recall state
func (s RecallState) String() string {
	return string(s)
}

package model

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// RecallQuery is an ephemeral recall request. It is not persisted beyond
// the audit stream.
type RecallQuery struct {
	OwnerID   types.OwnerID
	RawText   string `masq:"secret"`
	Timestamp time.Time
}

// RecallResult is the outcome of a recall request. CitedFragmentIDs is
// ordered most relevant first. When the verdict is rewritten, AnswerText
// holds the safe template answer instead of the generated text.
type RecallResult struct {
	AnswerText       string `masq:"secret"`
	CitedFragmentIDs []types.FragmentID
	Verdict          types.GuardrailVerdict
}

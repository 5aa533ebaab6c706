package model

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/domain/types"
)

// Fragment is one atomic unit of stored personal memory: a piece of text
// about a person, event, routine or fact, plus its vector representation.
// Fragments are never hard-deleted; a superseded fragment is marked
// inactive so recall history stays intact.
//
// Text is redacted in structured logs via masq.
type Fragment struct {
	ID             types.FragmentID
	OwnerID        types.OwnerID
	Text           string `masq:"secret"`
	Embedding      []float32 // nil until indexed
	Category       types.FragmentCategory
	Active         bool
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Indexed reports whether the fragment has an embedding vector.
func (f *Fragment) Indexed() bool {
	return len(f.Embedding) > 0
}

// Clone returns a deep copy of the fragment.
func (f *Fragment) Clone() *Fragment {
	copied := *f
	if f.Embedding != nil {
		copied.Embedding = make([]float32, len(f.Embedding))
		copy(copied.Embedding, f.Embedding)
	}
	return &copied
}

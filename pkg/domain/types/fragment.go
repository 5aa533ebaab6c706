package types

import (
	"fmt"

	"github.com/google/uuid"
)

// FragmentID is a UUID-based identifier for a memory fragment
type FragmentID string

// NewFragmentID generates a new UUID v4 FragmentID
func NewFragmentID() FragmentID {
	return FragmentID(uuid.New().String())
}

// String returns the string representation of the fragment ID
func (x FragmentID) String() string {
	return string(x)
}

// OwnerID identifies the person whose memories and reminders are stored.
// It is issued by the external authentication layer; the core treats it
// as an opaque, already-verified value.
type OwnerID string

// String returns the string representation of the owner ID
func (x OwnerID) String() string {
	return string(x)
}

// FragmentCategory represents the kind of a memory fragment
type FragmentCategory string

const (
	FragmentCategoryPerson  FragmentCategory = "person"
	FragmentCategoryEvent   FragmentCategory = "event"
	FragmentCategoryRoutine FragmentCategory = "routine"
	FragmentCategoryFact    FragmentCategory = "fact"
)

// AllFragmentCategories returns all valid fragment categories
func AllFragmentCategories() []FragmentCategory {
	return []FragmentCategory{
		FragmentCategoryPerson,
		FragmentCategoryEvent,
		FragmentCategoryRoutine,
		FragmentCategoryFact,
	}
}

// IsValid checks if the fragment category is valid
func (c FragmentCategory) IsValid() bool {
	switch c {
	case FragmentCategoryPerson,
		FragmentCategoryEvent,
		FragmentCategoryRoutine,
		FragmentCategoryFact:
		return true
	default:
		return false
	}
}

// String returns the string representation of the fragment category
func (c FragmentCategory) String() string {
	return string(c)
}

// ParseFragmentCategory parses a string into a FragmentCategory
func ParseFragmentCategory(s string) (FragmentCategory, error) {
	category := FragmentCategory(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid fragment category: %s", s)
	}
	return category, nil
}

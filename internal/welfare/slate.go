package welfare

import (
	"fmt"
	"sort"
)

// Slate is an ordered set of distinct item IDs.
type Slate []string

// Pool is the ordered set of candidate slates a selector searches.
type Pool []Slate

// Validate checks that the slate is non-empty, duplicate-free and fully
// present in the catalog.
func (s Slate) Validate(cat *Catalog) error {
	if len(s) == 0 {
		return ErrEmptySlate
	}
	seen := make(map[string]struct{}, len(s))
	for _, id := range s {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q appears twice in slate", ErrDuplicateItem, id)
		}
		seen[id] = struct{}{}
		if _, ok := cat.Item(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
	}
	return nil
}

// Sorted returns a copy of the slate in ascending ID order.
func (s Slate) Sorted() Slate {
	out := append(Slate(nil), s...)
	sort.Strings(out)
	return out
}

// Equal reports whether two slates hold the same IDs in the same order.
func (s Slate) Equal(o Slate) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

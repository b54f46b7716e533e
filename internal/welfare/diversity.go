package welfare

import "fmt"

// Diversity returns 1 minus the mean pairwise Jaccard similarity of the slate
// items' genres. Slates with fewer than two items score 0. Two items without
// genres count as identical. It is a reported outcome, not a stakeholder
// utility term.
func Diversity(slate Slate, cat *Catalog) (float64, error) {
	n := len(slate)
	sets := make([]map[string]struct{}, n)
	for i, id := range slate {
		it, ok := cat.Item(id)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		set := make(map[string]struct{}, len(it.Genres))
		for _, g := range it.Genres {
			set[g] = struct{}{}
		}
		sets[i] = set
	}
	if n < 2 {
		return 0, nil
	}

	var total float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return 1 - total/float64(pairs), nil
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

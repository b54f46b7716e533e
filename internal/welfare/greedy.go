package welfare

import (
	"fmt"
	"sort"
)

// SelectGreedySlate ranks every item by one attribute, descending with ties
// broken by ascending ID, and returns the top k. It never consults stakeholders.
func SelectGreedySlate(cat *Catalog, k int, attribute string) (Slate, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: slate size %d, must be >= 1", ErrInvalidSlateSize, k)
	}
	if cat.Len() < k {
		return nil, fmt.Errorf("%w: catalog has %d items, slate needs %d", ErrInsufficientCatalog, cat.Len(), k)
	}

	type ranked struct {
		id    string
		value float64
	}
	ids := cat.IDs()
	items := make([]ranked, len(ids))
	for i, id := range ids {
		v, err := cat.Attribute(id, attribute)
		if err != nil {
			return nil, err
		}
		items[i] = ranked{id: id, value: v}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].value != items[j].value {
			return items[i].value > items[j].value
		}
		return items[i].id < items[j].id
	})

	slate := make(Slate, k)
	for i := range slate {
		slate[i] = items[i].id
	}
	return slate, nil
}

package welfare

import (
	"fmt"
	"math"
	"sort"
)

// Item is one recommendable entry with its numeric attributes.
type Item struct {
	ID         string             `json:"id"`
	Title      string             `json:"title,omitempty"`
	Genres     []string           `json:"genres,omitempty"`
	Attributes map[string]float64 `json:"attributes"`
}

// Catalog is a read-only table of items keyed by ID.
type Catalog struct {
	items  map[string]Item
	ids    []string
	schema []string
}

// NewCatalog copies items into a catalog. IDs must be non-empty and unique,
// and every attribute value finite.
func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: empty item id", ErrUnknownItem)
		}
		if _, ok := c.items[it.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, it.ID)
		}
		attrs := make(map[string]float64, len(it.Attributes))
		for k, v := range it.Attributes {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: item %q has %s=%v", ErrInvalidAttribute, it.ID, k, v)
			}
			attrs[k] = v
		}
		it.Attributes = attrs
		it.Genres = append([]string(nil), it.Genres...)
		c.items[it.ID] = it
		c.ids = append(c.ids, it.ID)
	}
	sort.Strings(c.ids)
	c.schema = commonAttributes(c.items, c.ids)
	return c, nil
}

// commonAttributes returns the attribute names present on every item, sorted.
func commonAttributes(items map[string]Item, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	var out []string
	for name := range items[ids[0]].Attributes {
		shared := true
		for _, id := range ids[1:] {
			if _, ok := items[id].Attributes[name]; !ok {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.ids) }

// IDs returns all item IDs in ascending order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Item looks up an item by ID.
func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Schema returns the attribute names carried by every item.
func (c *Catalog) Schema() []string {
	return append([]string(nil), c.schema...)
}

// HasAttribute reports whether every item carries the named attribute.
func (c *Catalog) HasAttribute(name string) bool {
	i := sort.SearchStrings(c.schema, name)
	return i < len(c.schema) && c.schema[i] == name
}

// Attribute returns one attribute of one item.
func (c *Catalog) Attribute(id, name string) (float64, error) {
	it, ok := c.items[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	v, ok := it.Attributes[name]
	if !ok {
		return 0, fmt.Errorf("%w: item %q has no %q", ErrUnknownAttribute, id, name)
	}
	return v, nil
}

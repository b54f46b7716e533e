package welfare

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// pcgStream is the fixed second PCG word; only the seed varies between runs.
const pcgStream = 0x9e3779b97f4a7c15

// Generate draws n slates of k distinct items, uniformly without replacement
// from the catalog. The same catalog, k, n and seed always yield the same pool.
func Generate(cat *Catalog, k, n int, seed uint64) (Pool, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: slate size %d, must be >= 1", ErrInvalidSlateSize, k)
	}
	if n < 0 {
		return nil, fmt.Errorf("pool size %d, must be >= 0", n)
	}
	ids := cat.IDs()
	if len(ids) < k {
		return nil, fmt.Errorf("%w: catalog has %d items, slate needs %d", ErrInsufficientCatalog, len(ids), k)
	}

	src := rand.NewPCG(seed, pcgStream)
	idx := make([]int, k)
	pool := make(Pool, n)
	for i := range pool {
		sampleuv.WithoutReplacement(idx, len(ids), src)
		slate := make(Slate, k)
		for j, x := range idx {
			slate[j] = ids[x]
		}
		pool[i] = slate
	}
	return pool, nil
}

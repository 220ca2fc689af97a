package testutil

import "sync"

// FixedIDGenerator returns predetermined run ids for deterministic test
// output. Panics when exhausted - running out of ids in a test means
// the test scheduled more runs than it declared.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("testutil: all fixed ids consumed")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Package selection picks quiz questions from a deck so that every index is
// shown once per cycle and, while alternatives remain, never twice in a row.
package selection

// Source is the randomness used by PickNext. *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// PickNext returns an index in [0, size) that is not in seen, preferring one
// different from previous. ok is false when the cycle is complete, including
// for an empty deck. PickNext does not modify seen.
func PickNext(size int, seen map[int]bool, previous int, hasPrevious bool, rnd Source) (index int, ok bool) {
	unseen := 0
	for i := 0; i < size; i++ {
		if !seen[i] {
			unseen++
		}
	}
	if unseen == 0 {
		return 0, false
	}

	candidates := make([]int, 0, unseen)
	for i := 0; i < size; i++ {
		if !seen[i] && !(hasPrevious && i == previous) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// Only previous is left unseen; repeating it is the only way forward.
		for i := 0; i < size; i++ {
			if !seen[i] {
				candidates = append(candidates, i)
			}
		}
	}
	return candidates[rnd.Intn(len(candidates))], true
}

// Cycle tracks one pass through a deck of a fixed size.
type Cycle struct {
	size        int
	seen        map[int]bool
	previous    int
	hasPrevious bool
	rnd         Source
}

func NewCycle(size int, rnd Source) *Cycle {
	if size < 0 {
		size = 0
	}
	return &Cycle{size: size, seen: make(map[int]bool, size), rnd: rnd}
}

// Next picks the next index and marks it seen. ok is false once every index
// has been seen; the cycle is then left unchanged until Reset.
func (c *Cycle) Next() (int, bool) {
	index, ok := PickNext(c.size, c.seen, c.previous, c.hasPrevious, c.rnd)
	if !ok {
		return 0, false
	}
	c.seen[index] = true
	c.previous, c.hasPrevious = index, true
	return index, true
}

// Reset starts a new cycle: nothing seen and no previous index.
func (c *Cycle) Reset() {
	c.seen = make(map[int]bool, c.size)
	c.previous, c.hasPrevious = 0, false
}

// Complete reports whether every index has been seen.
func (c *Cycle) Complete() bool {
	return len(c.seen) >= c.size
}

func (c *Cycle) Size() int {
	return c.size
}

// Seen returns how many indices were shown in the current cycle.
func (c *Cycle) Seen() int {
	return len(c.seen)
}

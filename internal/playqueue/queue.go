// Package playqueue keeps the ordered list of local files to play and the
// position of the current one.
package playqueue

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
)

// Queue is an ordered, duplicate-free list of file paths with a current index.
// When the queue is not empty the index is always in [0, Len()-1].
type Queue struct {
	mu    sync.Mutex
	items []string
	index int
	mode  Mode
	rng   *rand.Rand
	log   *slog.Logger
}

// New creates an empty queue in sequential mode.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		mode: ModeSequential,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:  logger.With("component", "playqueue"),
	}
}

// Add appends path unless it is already queued.
func (q *Queue) Add(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.add(path)
}

// AddMany appends every path not already queued and reports how many were
// added and how many were already present.
func (q *Queue) AddMany(paths []string) (added, present int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range paths {
		if q.add(p) {
			added++
		} else {
			present++
		}
	}
	return added, present
}

func (q *Queue) add(path string) bool {
	if path == "" || slices.Contains(q.items, path) {
		return false
	}
	q.items = append(q.items, path)
	return true
}

// RemoveAt removes the entry at i.
func (q *Queue) RemoveAt(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return fmt.Errorf("remove %d of %d: %w", i, len(q.items), ErrOutOfRange)
	}
	q.removeAt(i)
	return nil
}

// RemovePath removes path from the queue.
func (q *Queue) RemovePath(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := slices.Index(q.items, path)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", path, ErrNotFound)
	}
	q.removeAt(i)
	return nil
}

func (q *Queue) removeAt(i int) {
	q.items = slices.Delete(q.items, i, i+1)
	switch {
	case len(q.items) == 0:
		q.index = 0
	case i < q.index:
		q.index--
	case i == q.index:
		// the next entry slides into place; clamp if the last one went
		q.index = min(q.index, len(q.items)-1)
	}
}

// MoveUp swaps entry i with the one before it.
func (q *Queue) MoveUp(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i <= 0 || i >= len(q.items) {
		return fmt.Errorf("move up %d of %d: %w", i, len(q.items), ErrOutOfRange)
	}
	q.swap(i, i-1)
	return nil
}

// MoveDown swaps entry i with the one after it.
func (q *Queue) MoveDown(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items)-1 {
		return fmt.Errorf("move down %d of %d: %w", i, len(q.items), ErrOutOfRange)
	}
	q.swap(i, i+1)
	return nil
}

// swap exchanges two entries; the current index follows the current entry.
func (q *Queue) swap(a, b int) {
	q.items[a], q.items[b] = q.items[b], q.items[a]
	switch q.index {
	case a:
		q.index = b
	case b:
		q.index = a
	}
}

// Current returns the entry at the current index.
func (q *Queue) Current() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	return q.items[q.index], true
}

// SetIndex makes entry i current.
func (q *Queue) SetIndex(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return fmt.Errorf("set index %d of %d: %w", i, len(q.items), ErrOutOfRange)
	}
	q.index = i
	return nil
}

// Next advances according to the play mode and returns the new current entry.
// In sequential mode it returns false at the end of the queue and leaves the
// index unchanged.
func (q *Queue) Next() (string, bool) {
	return q.step(1)
}

// Previous moves back according to the play mode.
func (q *Queue) Previous() (string, bool) {
	return q.step(-1)
}

func (q *Queue) step(dir int) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return "", false
	}

	switch q.mode {
	case ModeSingle:
	case ModeLoop:
		q.index = (q.index + dir + n) % n
	case ModeRandom:
		if n > 1 {
			j := q.rng.IntN(n - 1)
			if j >= q.index {
				j++
			}
			q.index = j
		}
	default:
		next := q.index + dir
		if next < 0 || next >= n {
			return "", false
		}
		q.index = next
	}
	return q.items[q.index], true
}

// SetMode changes the play mode.
func (q *Queue) SetMode(m Mode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mode = m
}

// Mode returns the play mode.
func (q *Queue) Mode() Mode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

// Items returns a copy of the queued paths.
func (q *Queue) Items() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Index returns the current index. It is 0 for an empty queue.
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.index = 0
}

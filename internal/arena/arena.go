// Package arena implements a generational slot arena. Values are
// stored in a dense slice of slots and referred to by handles that
// carry both the slot index and the generation the slot had when the
// value was stored, so a handle to a freed slot is detected in O(1)
// instead of silently resolving to whatever reused the slot.
package arena

import "iter"

// A Handle identifies a value stored in an Arena. The zero Handle is
// never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// Zero reports whether h is the zero Handle.
func (h Handle) Zero() bool {
	return h.gen == 0
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena stores values of type T in generational slots. The zero Arena
// is ready to use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Add stores v in a free slot and returns a handle to it.
func (a *Arena[T]) Add(v T) Handle {
	a.count++

	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]

		s := &a.slots[i]
		s.value = v
		s.gen++
		s.live = true
		return Handle{index: i, gen: s.gen}
	}

	a.slots = append(a.slots, slot[T]{value: v, gen: 1, live: true})
	return Handle{index: uint32(len(a.slots) - 1), gen: 1}
}

// Get returns the value that h refers to. It returns false if h is
// stale, meaning that the value was removed, or was never valid.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if int(h.index) >= len(a.slots) {
		var zero T
		return zero, false
	}
	s := &a.slots[h.index]
	if !s.live || s.gen != h.gen {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Remove frees the slot that h refers to, returning the value that was
// stored there. Removing an already stale handle is a no-op.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	if int(h.index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.index]
	if !s.live || s.gen != h.gen {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.live = false
	a.free = append(a.free, h.index)
	a.count--
	return v, true
}

// Len returns the number of live values in the arena.
func (a *Arena[T]) Len() int {
	return a.count
}

// All iterates over all live values in the arena.
func (a *Arena[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.live {
				continue
			}
			if !yield(Handle{index: uint32(i), gen: s.gen}, s.value) {
				return
			}
		}
	}
}

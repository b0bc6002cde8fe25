package comp

import (
	"image"
	"slices"
	"sync"
)

// A Frame is an immutable snapshot of a surface's committed state,
// the unit handed across the boundary between the protocol path and
// the renderer.
type Frame struct {
	// Surface identifies the surface. The handle goes stale if the
	// surface is destroyed, which the renderer must treat as "skip",
	// not as an error.
	Surface SurfaceID

	// Buffer is the committed pixel source. The bridge guarantees it
	// stays referenced until Release is called for this frame.
	Buffer *Buffer

	// Damage is the region dirtied since the last consumed frame.
	Damage Region

	// Bounds is the surface's geometry in global coordinates.
	Bounds image.Rectangle

	// Seq is the commit sequence number. A consumer that somehow sees
	// frames out of order discards the stale one.
	Seq uint64
}

// outbox is the single-slot mailbox for one surface. A newly
// published frame replaces an unconsumed one, inheriting its damage.
type outbox struct {
	mu       sync.Mutex
	frame    *Frame
	retained bool // frame still holds the checkout reference (render fault retry)
}

// Bridge is the boundary between the protocol path and the renderer.
// The protocol side publishes committed frames into per-surface
// single-slot outboxes and never waits for the renderer; the renderer
// checks frames out at its own cadence and releases them when their
// pixels have been consumed.
type Bridge struct {
	tracker *BufferTracker

	mu       sync.RWMutex
	slots    map[SurfaceID]*outbox
	unmapped []SurfaceID
	stacking []SurfaceID
}

func newBridge(tracker *BufferTracker) *Bridge {
	return &Bridge{
		tracker: tracker,
		slots:   make(map[SurfaceID]*outbox),
	}
}

func (b *Bridge) slot(id SurfaceID, create bool) *outbox {
	b.mu.RLock()
	s := b.slots[id]
	b.mu.RUnlock()
	if s != nil || !create {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s = b.slots[id]
	if s == nil {
		s = new(outbox)
		b.slots[id] = s
	}
	return s
}

// publish places f in its surface's outbox. If an unconsumed frame is
// still there it is replaced, and its damage is unioned into f so no
// dirty region is ever lost. This is the backpressure policy: a slow
// renderer sees fewer, larger updates, never a queue.
func (b *Bridge) publish(f Frame) {
	s := b.slot(f.Surface, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.frame; old != nil {
		f.Damage = f.Damage.UnionRegion(old.Damage)
		if s.retained {
			b.tracker.Unref(old.Buffer)
			s.retained = false
		}
	}
	s.frame = &f
}

// unmap removes the surface's outbox and queues an unmap notification
// for the renderer.
func (b *Bridge) unmap(id SurfaceID) {
	b.mu.Lock()
	s := b.slots[id]
	delete(b.slots, id)
	b.unmapped = append(b.unmapped, id)
	b.mu.Unlock()

	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil && s.retained {
		b.tracker.Unref(s.frame.Buffer)
	}
	s.frame = nil
	s.retained = false
}

// Frames checks out every pending frame. Each returned frame holds a
// buffer reference that must eventually be given back with Release or
// Requeue. Called from the renderer's schedule.
func (b *Bridge) Frames() []Frame {
	b.mu.RLock()
	boxes := make([]*outbox, 0, len(b.slots))
	for _, s := range b.slots {
		boxes = append(boxes, s)
	}
	b.mu.RUnlock()

	var out []Frame
	for _, s := range boxes {
		s.mu.Lock()
		if s.frame != nil {
			f := *s.frame
			if !s.retained {
				b.tracker.Ref(f.Buffer)
			}
			s.frame = nil
			s.retained = false
			out = append(out, f)
		}
		s.mu.Unlock()
	}
	return out
}

// Release gives back the buffer reference a checked-out frame holds.
// The producer's release notification fires from here once nothing
// else references the buffer, which is how release flows renderer →
// tracker → client without the protocol path ever blocking on it.
func (b *Bridge) Release(f Frame) {
	b.tracker.Unref(f.Buffer)
}

// Requeue puts a checked-out frame back in its outbox after a
// renderer-side fault, so the next render pass can retry it. If a
// newer frame got published in the meantime the newer one wins and
// only the damage is folded in.
func (b *Bridge) Requeue(f Frame) {
	s := b.slot(f.Surface, false)
	if s == nil {
		// Surface vanished while the frame was checked out.
		b.Release(f)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil {
		s.frame.Damage = s.frame.Damage.UnionRegion(f.Damage)
		b.tracker.Unref(f.Buffer)
		return
	}
	s.frame = &f
	s.retained = true
}

// Unmapped drains the surfaces that vanished since the last call.
// Called from the renderer's schedule.
func (b *Bridge) Unmapped() []SurfaceID {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.unmapped
	b.unmapped = nil
	return u
}

// Stacking returns a snapshot of the z-order, front to back. Called
// from the renderer's schedule.
func (b *Bridge) Stacking() []SurfaceID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.stacking)
}

func (b *Bridge) setStacking(stack []SurfaceID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stacking = slices.Clone(stack)
}

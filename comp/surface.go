package comp

import (
	"image"

	"deedles.dev/tide/internal/arena"
)

// SurfaceID is a stable handle to a surface. Handles to destroyed
// surfaces go stale rather than dangling, so the renderer side can
// safely hold them across commits.
type SurfaceID = arena.Handle

// SurfaceState is one side of a surface's double-buffered state. The
// current side is only ever replaced wholesale by a commit.
type SurfaceState struct {
	// Buffer is the attached pixel source. Nil means the surface has
	// no content and is unmapped.
	Buffer *Buffer

	// Offset is the buffer's offset from the surface origin.
	Offset image.Point

	// Damage is the region dirtied since the previous commit, in
	// surface-local coordinates.
	Damage Region

	// Opaque is the region the client promises is fully opaque.
	Opaque Region

	// Input is the region accepting input. Nil means the whole
	// surface extent.
	Input Region

	// Seq is the commit sequence number this state was published
	// with. It increases monotonically and is used to discard stale
	// frames that arrive late at the renderer.
	Seq uint64
}

// A Surface is a rectangular drawable region a client renders into.
// It goes fresh → has-content → destroyed, and all content changes are
// staged in pending state until a commit publishes them atomically.
type Surface struct {
	id     SurfaceID
	wireID uint32
	client *Client
	comp   *Compositor

	pending SurfaceState
	current SurfaceState
	seq     uint64

	hasContent bool
	destroyed  bool
	shell      *ShellSurface
}

func (s *Surface) ID() SurfaceID   { return s.id }
func (s *Surface) WireID() uint32  { return s.wireID }
func (s *Surface) Client() *Client { return s.client }

// Role returns the surface's shell role, RoleNone if none was ever
// assigned.
func (s *Surface) Role() Role {
	if s.shell == nil {
		return RoleNone
	}
	return s.shell.role
}

// ShellSurface returns the surface's role object, nil if no role was
// assigned.
func (s *Surface) ShellSurface() *ShellSurface { return s.shell }

// Current returns a copy of the committed state.
func (s *Surface) Current() SurfaceState { return s.current }

// Attach stages buf as the surface's content. A nil buf stages the
// surface for unmapping. Nothing is visible until the next commit.
func (s *Surface) Attach(buf *Buffer, dx, dy int32) {
	if s.destroyed {
		return
	}

	old := s.pending.Buffer
	if buf != old {
		s.comp.tracker.Ref(buf)
		if old != nil && old != s.current.Buffer {
			// The previous attachment was never committed; the
			// producer gets its memory back right away.
			s.comp.tracker.Unref(old)
		}
		s.pending.Buffer = buf
	}
	s.pending.Offset = image.Pt(int(dx), int(dy))
}

// Damage unions rect into the pending damage. Over-damage is fine;
// under-damage is not, so nothing here tries to be clever.
func (s *Surface) Damage(rect image.Rectangle) {
	if s.destroyed {
		return
	}
	s.pending.Damage = s.pending.Damage.Union(rect)
}

// SetInputRegion stages the region that accepts input. Nil restores
// the default, the surface's full extent.
func (s *Surface) SetInputRegion(reg Region) {
	if s.destroyed {
		return
	}
	s.pending.Input = reg
}

// SetOpaqueRegion stages the region the client promises is opaque.
func (s *Surface) SetOpaqueRegion(reg Region) {
	if s.destroyed {
		return
	}
	s.pending.Opaque = reg
}

// Commit atomically publishes the pending state as current. If the
// surface has a shell role, the role's commit rule runs first, so a
// failed commit leaves both halves of the state untouched.
func (s *Surface) Commit() error {
	if s.destroyed {
		return InvalidStateError{Reason: "commit on destroyed surface"}
	}
	if s.pending.Buffer != nil && s.shell == nil {
		return InvalidStateError{Reason: "buffer committed before role assignment"}
	}
	if s.shell != nil {
		err := s.shell.commit()
		if err != nil {
			return err
		}
	}

	prev := s.current.Buffer
	s.seq++
	s.current = SurfaceState{
		Buffer: s.pending.Buffer,
		Offset: s.pending.Offset,
		Damage: s.pending.Damage.Clone(),
		Opaque: s.pending.Opaque.Clone(),
		Input:  s.pending.Input.Clone(),
		Seq:    s.seq,
	}
	s.pending.Damage = nil
	if s.shell != nil {
		s.shell.publish()
	}

	if s.current.Buffer == nil {
		s.comp.unmapSurface(s)
		if prev != nil {
			s.comp.tracker.Unref(prev)
		}
		return nil
	}

	s.hasContent = true
	s.comp.publishSurface(s)

	// The superseded buffer is released only after the new frame is in
	// the outbox, so a renderer that already checked the old frame out
	// keeps its reference until it is done.
	if prev != nil && prev != s.current.Buffer {
		s.comp.tracker.Unref(prev)
	}
	return nil
}

// extent returns the surface's size, derived from its committed
// buffer.
func (s *Surface) extent() image.Rectangle {
	if s.current.Buffer == nil {
		return image.Rectangle{}
	}
	w, h := s.current.Buffer.source.Size()
	return image.Rect(0, 0, int(w), int(h))
}

// acceptsInput reports whether the surface-local point p falls in the
// surface's input region.
func (s *Surface) acceptsInput(p image.Point) bool {
	if s.current.Input == nil {
		return p.In(s.extent())
	}
	return s.current.Input.Contains(p)
}

// position returns the surface's committed position in global
// coordinates.
func (s *Surface) position() image.Point {
	if s.shell == nil {
		return image.Point{}
	}
	return s.shell.current.Pos
}

// bounds returns the surface's committed extent in global coordinates.
func (s *Surface) bounds() image.Rectangle {
	return s.extent().Add(s.position())
}

// publishSurface maps s if needed and hands its committed state to the
// bridge.
func (c *Compositor) publishSurface(s *Surface) {
	if !c.mapped(s.id) {
		// Fresh windows come up frontmost.
		c.raise(s.id)
	}

	c.bridge.publish(Frame{
		Surface: s.id,
		Buffer:  s.current.Buffer,
		Damage:  s.current.Damage.Clone(),
		Bounds:  s.bounds(),
		Seq:     s.current.Seq,
	})
}

// unmapSurface drops s from the z-order and tells the renderer to
// forget it.
func (c *Compositor) unmapSurface(s *Surface) {
	c.unstack(s.id)
	c.bridge.unmap(s.id)
	c.seat.dropFocus(c, s)
}

// destroySurface tears s down completely, releasing any buffers it
// still references.
func (c *Compositor) destroySurface(s *Surface) {
	if s.destroyed {
		return
	}
	s.destroyed = true

	c.unmapSurface(s)
	if b := s.pending.Buffer; b != nil && b != s.current.Buffer {
		c.tracker.Unref(b)
	}
	if b := s.current.Buffer; b != nil {
		c.tracker.Unref(b)
	}
	s.pending = SurfaceState{}
	s.current = SurfaceState{}
	c.surfaces.Remove(s.id)
}

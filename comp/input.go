package comp

import (
	"image"

	"deedles.dev/tide/internal/set"
)

// Seat tracks the input state of the one seat the engine exposes:
// which surfaces hold pointer and keyboard focus and which buttons
// and keys are down.
type Seat struct {
	pointerFocus  SurfaceID
	keyboardFocus SurfaceID
	buttons       set.Set[uint32]
	keys          set.Set[uint32]
	pointer       image.Point
}

// PointerFocus returns the surface currently under the pointer.
func (st *Seat) PointerFocus() SurfaceID { return st.pointerFocus }

// KeyboardFocus returns the surface holding keyboard focus. Keyboard
// focus is explicit, set by toplevel activation, and independent of
// pointer hit testing.
func (st *Seat) KeyboardFocus() SurfaceID { return st.keyboardFocus }

// ButtonPressed reports whether the given button is down.
func (st *Seat) ButtonPressed(button uint32) bool { return st.buttons.Has(button) }

// KeyPressed reports whether the given key is down.
func (st *Seat) KeyPressed(code uint32) bool { return st.keys.Has(code) }

// Pointer returns the pointer's last position in global protocol
// coordinates.
func (st *Seat) Pointer() image.Point { return st.pointer }

// dropFocus forgets any focus held by a surface that is going away.
// No leave event is synthesized: the object the event would name no
// longer exists.
func (st *Seat) dropFocus(c *Compositor, s *Surface) {
	if st.pointerFocus == s.id {
		st.pointerFocus = SurfaceID{}
	}
	if st.keyboardFocus == s.id {
		st.keyboardFocus = SurfaceID{}
	}
}

// pointerButtons is the set of button codes a pointer event's mask is
// decomposed into, from linux/input-event-codes.h.
var pointerButtons = [...]uint32{
	0x110, // left
	0x111, // right
	0x112, // middle
	0x113, // side
	0x114, // extra
	0x115, // forward
	0x116, // back
	0x117, // task
}

// TransformPoint maps host-native device coordinates onto the
// protocol's coordinate space: normalize by the output's scale, flip
// the vertical axis from the host's bottom-left origin to the
// protocol's top-left pixels, then translate into the output's
// logical origin. The steps apply in exactly that order.
func TransformPoint(x, y float64, out *Output) image.Point {
	if out.Scale > 0 {
		x /= out.Scale
		y /= out.Scale
	}
	y = float64(out.Size.Y) - y
	return image.Pt(int(x), int(y)).Add(out.Pos)
}

// hitTest walks the z-order front to back and returns the first
// mapped surface whose input region contains p.
func (c *Compositor) hitTest(p image.Point) *Surface {
	for _, id := range c.stack {
		s, ok := c.surfaces.Get(id)
		if !ok {
			continue
		}
		if s.acceptsInput(p.Sub(s.position())) {
			return s
		}
	}
	return nil
}

// InjectPointerEvent routes one host pointer event: x and y are
// device-native host coordinates, buttons is the currently pressed
// button mask, and time is a monotonic millisecond timestamp. Must be
// called from the protocol thread.
func (c *Compositor) InjectPointerEvent(x, y float64, buttons uint32, time uint32) {
	p := TransformPoint(x, y, c.primaryOutput())
	c.seat.pointer = p

	target := c.hitTest(p)
	c.updatePointerFocus(target)

	// Button state is seat state and stays consistent even when the
	// event itself has no target.
	pressed, released := c.seat.updateButtons(buttons)

	if target == nil {
		return
	}

	local := p.Sub(target.position())
	sink := target.client.sink
	sink.PointerMotion(target, local, time)
	for _, b := range pressed {
		sink.PointerButton(target, b, true, time)
	}
	for _, b := range released {
		sink.PointerButton(target, b, false, time)
	}
}

// updatePointerFocus synthesizes leave and enter notifications when
// the pointer moves between surfaces, before any primary event is
// delivered to the new target.
func (c *Compositor) updatePointerFocus(target *Surface) {
	var id SurfaceID
	if target != nil {
		id = target.id
	}
	if id == c.seat.pointerFocus {
		return
	}

	if old, ok := c.surfaces.Get(c.seat.pointerFocus); ok {
		old.client.sink.PointerLeave(old)
	}
	c.seat.pointerFocus = id
	if target != nil {
		local := c.seat.pointer.Sub(target.position())
		target.client.sink.PointerEnter(target, local)
	}
}

// updateButtons diffs the incoming button mask against the seat's
// pressed set and returns the codes that went down and up.
func (st *Seat) updateButtons(mask uint32) (pressed, released []uint32) {
	if st.buttons == nil {
		st.buttons = make(set.Set[uint32])
	}
	for i, code := range pointerButtons {
		down := mask&(1<<i) != 0
		switch {
		case down && !st.buttons.Has(code):
			st.buttons.Add(code)
			pressed = append(pressed, code)
		case !down && st.buttons.Has(code):
			st.buttons.Delete(code)
			released = append(released, code)
		}
	}
	return pressed, released
}

// InjectKeyEvent routes one host key event to the surface holding
// keyboard focus. Events with no focused surface are dropped. Must be
// called from the protocol thread.
func (c *Compositor) InjectKeyEvent(code uint32, pressed bool, time uint32) {
	if c.seat.keys == nil {
		c.seat.keys = make(set.Set[uint32])
	}
	if pressed {
		c.seat.keys.Add(code)
	} else {
		c.seat.keys.Delete(code)
	}

	target, ok := c.surfaces.Get(c.seat.keyboardFocus)
	if !ok {
		return
	}
	target.client.sink.Key(target, code, pressed, time)
}

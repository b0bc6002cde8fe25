package comp

import (
	"fmt"
	"image"
)

// Role is a surface's windowing role. A role is assigned at most once
// per surface and is immutable afterwards.
type Role int

const (
	RoleNone Role = iota
	RoleToplevel
	RolePopup
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleToplevel:
		return "toplevel"
	case RolePopup:
		return "popup"
	}
	return "unknown"
}

// WindowState is the windowing half of a shell surface's
// double-buffered state.
type WindowState struct {
	Pos        image.Point
	Size       image.Point
	Maximized  bool
	Fullscreen bool
	Activated  bool
}

// configure is one round of the configure/acknowledge handshake.
type configure struct {
	serial uint32
	size   image.Point
	state  WindowState
}

// A ShellSurface layers windowing semantics on a surface. It starts
// unconfigured; a commit is only legal once the client has
// acknowledged a configure, and every configure round re-enters the
// configured state with the acknowledged geometry staged as pending.
type ShellSurface struct {
	wireID  uint32
	surface *Surface
	role    Role
	parent  *Surface
	title   string

	configured bool
	sent       configure

	pending WindowState
	current WindowState
}

func (sh *ShellSurface) WireID() uint32    { return sh.wireID }
func (sh *ShellSurface) Surface() *Surface { return sh.surface }
func (sh *ShellSurface) Role() Role        { return sh.role }
func (sh *ShellSurface) Parent() *Surface  { return sh.parent }
func (sh *ShellSurface) Title() string     { return sh.title }

// Current returns the committed window state.
func (sh *ShellSurface) Current() WindowState { return sh.current }

// SetTitle sets the window title. Titles are not double-buffered.
func (sh *ShellSurface) SetTitle(title string) { sh.title = title }

// CreateShell assigns a windowing role to s and binds the role object
// to id. Role assignment is one-shot: a surface that already has a
// role rejects a second one regardless of its content state.
func (cl *Client) CreateShell(id uint32, s *Surface, role Role, parent *Surface, offset image.Point) (*ShellSurface, error) {
	if role == RoleNone {
		return nil, InvalidStateError{Reason: "cannot assign the null role"}
	}
	if s.shell != nil {
		return nil, InvalidStateError{Reason: fmt.Sprintf("surface already has role %v", s.shell.role)}
	}
	if role == RolePopup && (parent == nil || parent.shell == nil) {
		return nil, InvalidStateError{Reason: "popup requires a parent surface with a role"}
	}

	sh := &ShellSurface{
		wireID:  id,
		surface: s,
		role:    role,
		parent:  parent,
	}
	if role == RolePopup {
		pos := parent.shell.current.Pos.Add(offset)
		sh.pending.Pos = pos
		sh.current.Pos = pos
	}

	err := cl.Add(id, KindShell, sh)
	if err != nil {
		return nil, err
	}
	s.shell = sh

	// The first configure round. Zero size means the client picks.
	sh.Configure(image.Point{}, WindowState{})
	return sh, nil
}

// Configure proposes geometry and state to the client, assigning a
// fresh serial. Several configures may be in flight; only the most
// recent one is meaningful.
func (sh *ShellSurface) Configure(size image.Point, state WindowState) uint32 {
	serial := sh.surface.comp.nextSerial()
	sh.sent = configure{serial: serial, size: size, state: state}
	sh.surface.client.sink.Configure(sh, serial, size, state)
	return serial
}

// Ack acknowledges a configure. Only the serial of the most recently
// sent configure has any effect; stale serials from pipelined rounds
// are accepted and ignored.
func (sh *ShellSurface) Ack(serial uint32) {
	if serial != sh.sent.serial {
		return
	}
	sh.configured = true

	sh.pending.Size = sh.sent.size
	sh.pending.Maximized = sh.sent.state.Maximized
	sh.pending.Fullscreen = sh.sent.state.Fullscreen
	sh.pending.Activated = sh.sent.state.Activated
}

// commit is the role's half of the surface commit rule. It only
// validates; publish applies the staged state once the surface's own
// commit cannot fail anymore.
func (sh *ShellSurface) commit() error {
	if !sh.configured {
		return NotConfiguredError{Role: sh.role}
	}
	return nil
}

// publish makes the pending window state current, atomically with the
// surface state that was just committed.
func (sh *ShellSurface) publish() {
	sh.current = sh.pending
}

// Move positions the window. Position is compositor-side state and
// takes effect immediately rather than waiting on a client commit.
func (sh *ShellSurface) Move(pos image.Point) {
	sh.pending.Pos = pos
	sh.current.Pos = pos
}

// Maximize proposes a maximized configure sized to the primary
// output.
func (c *Compositor) Maximize(sh *ShellSurface) {
	out := c.primaryOutput()
	st := sh.sent.state
	st.Maximized = true
	sh.Configure(out.Size, st)
}

// Unmaximize proposes a configure returning size choice to the
// client.
func (c *Compositor) Unmaximize(sh *ShellSurface) {
	st := sh.sent.state
	st.Maximized = false
	sh.Configure(image.Point{}, st)
}

// Fullscreen proposes a fullscreen configure covering the primary
// output.
func (c *Compositor) Fullscreen(sh *ShellSurface) {
	out := c.primaryOutput()
	st := sh.sent.state
	st.Fullscreen = true
	sh.Configure(out.Size, st)
}

// Unfullscreen proposes a configure leaving fullscreen.
func (c *Compositor) Unfullscreen(sh *ShellSurface) {
	st := sh.sent.state
	st.Fullscreen = false
	sh.Configure(image.Point{}, st)
}

// Activate gives sh keyboard focus, raises it, and tells both the
// previously active window and sh about the change.
func (c *Compositor) Activate(sh *ShellSurface) {
	if prev, ok := c.surfaces.Get(c.seat.keyboardFocus); ok && prev != sh.surface {
		if prev.shell != nil {
			st := prev.shell.sent.state
			st.Activated = false
			prev.shell.Configure(prev.shell.sent.size, st)
		}
	}

	c.seat.keyboardFocus = sh.surface.id
	if c.mapped(sh.surface.id) {
		c.raise(sh.surface.id)
	}

	st := sh.sent.state
	st.Activated = true
	sh.Configure(sh.sent.size, st)
}

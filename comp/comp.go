// Package comp implements the core of the tide display server: the
// per-client object registry, the surface and shell-role state
// machines, damage accumulation, the bridge that hands committed
// surface snapshots to the renderer, and input routing.
//
// The whole package assumes the single-threaded cooperative model of
// the protocol path: one request is fully processed before the next
// one starts, so a commit is atomic with respect to all other protocol
// requests by construction. The only pieces shared with the renderer's
// schedule are the Bridge and the BufferTracker, which carry their own
// locks.
package comp

import (
	"image"
	"io"
	"slices"

	"deedles.dev/tide/internal/arena"
	"deedles.dev/tide/internal/set"
	"github.com/charmbracelet/log"
)

// Compositor is the protocol engine. All of its methods except those
// explicitly documented otherwise must be called from the protocol
// thread.
type Compositor struct {
	cfg     *Config
	log     *log.Logger
	tracker BufferTracker
	bridge  *Bridge

	clients  set.Set[*Client]
	surfaces arena.Arena[*Surface]

	// stack is the z-order list, front to back. It contains exactly
	// the mapped surfaces.
	stack []SurfaceID

	outputs []*Output
	seat    Seat
	serial  uint32
}

// New creates an engine with the given configuration. A nil cfg uses
// defaults; a nil logger discards everything.
func New(cfg *Config, logger *log.Logger) *Compositor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	c := Compositor{
		cfg:     cfg,
		log:     logger,
		clients: make(set.Set[*Client]),
	}
	c.bridge = newBridge(&c.tracker)
	return &c
}

// Config returns the engine's read-only configuration.
func (c *Compositor) Config() *Config { return c.cfg }

// Bridge returns the renderer-facing side of the engine.
func (c *Compositor) Bridge() *Bridge { return c.bridge }

// Tracker returns the engine's buffer tracker.
func (c *Compositor) Tracker() *BufferTracker { return &c.tracker }

// AddOutput registers a rendering target.
func (c *Compositor) AddOutput(out *Output) {
	if out.Scale <= 0 {
		out.Scale = c.cfg.ScaleFactor
	}
	c.outputs = append(c.outputs, out)
}

// Outputs returns the registered rendering targets.
func (c *Compositor) Outputs() []*Output { return c.outputs }

// Seat returns the engine's input seat.
func (c *Compositor) Seat() *Seat { return &c.seat }

// nextSerial returns a fresh serial number for a configure event.
// Serials are engine-global and never zero.
func (c *Compositor) nextSerial() uint32 {
	c.serial++
	if c.serial == 0 {
		c.serial++
	}
	return c.serial
}

// Surface resolves a surface handle. It returns false for handles
// whose surface has been destroyed.
func (c *Compositor) Surface(id SurfaceID) (*Surface, bool) {
	return c.surfaces.Get(id)
}

// Stacking returns the z-order list, front to back.
func (c *Compositor) Stacking() []SurfaceID {
	return slices.Clone(c.stack)
}

// raise moves id to the front of the z-order, inserting it if it is
// not mapped yet.
func (c *Compositor) raise(id SurfaceID) {
	i := slices.Index(c.stack, id)
	if i == 0 {
		return
	}
	if i > 0 {
		c.stack = slices.Delete(c.stack, i, i+1)
	}
	c.stack = slices.Insert(c.stack, 0, id)
	c.bridge.setStacking(c.stack)
}

// unstack removes id from the z-order.
func (c *Compositor) unstack(id SurfaceID) {
	i := slices.Index(c.stack, id)
	if i < 0 {
		return
	}
	c.stack = slices.Delete(c.stack, i, i+1)
	c.bridge.setStacking(c.stack)
}

func (c *Compositor) mapped(id SurfaceID) bool {
	return slices.Contains(c.stack, id)
}

// primaryOutput returns the output that host input coordinates are
// interpreted against.
func (c *Compositor) primaryOutput() *Output {
	if len(c.outputs) == 0 {
		return &fallbackOutput
	}
	return c.outputs[0]
}

var fallbackOutput = Output{Size: image.Pt(0, 0), Scale: 1}

package comp

import (
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordSink implements EventSink by recording everything it is told.
type recordSink struct {
	configures []configureEvent
	events     []string
	released   []uint32
}

type configureEvent struct {
	sh     *ShellSurface
	serial uint32
	size   image.Point
	state  WindowState
}

func (rs *recordSink) Configure(sh *ShellSurface, serial uint32, size image.Point, state WindowState) {
	rs.configures = append(rs.configures, configureEvent{sh, serial, size, state})
}

func (rs *recordSink) PointerEnter(s *Surface, pos image.Point) {
	rs.events = append(rs.events, fmt.Sprintf("enter %v %v", s.WireID(), pos))
}

func (rs *recordSink) PointerLeave(s *Surface) {
	rs.events = append(rs.events, fmt.Sprintf("leave %v", s.WireID()))
}

func (rs *recordSink) PointerMotion(s *Surface, pos image.Point, time uint32) {
	rs.events = append(rs.events, fmt.Sprintf("motion %v %v", s.WireID(), pos))
}

func (rs *recordSink) PointerButton(s *Surface, button uint32, pressed bool, time uint32) {
	rs.events = append(rs.events, fmt.Sprintf("button %v %#x %v", s.WireID(), button, pressed))
}

func (rs *recordSink) Key(s *Surface, key uint32, pressed bool, time uint32) {
	rs.events = append(rs.events, fmt.Sprintf("key %v %v %v", s.WireID(), key, pressed))
}

func (rs *recordSink) BufferRelease(b *Buffer) {
	rs.released = append(rs.released, b.WireID())
}

func (rs *recordSink) lastConfigure(t *testing.T) configureEvent {
	t.Helper()
	require.NotEmpty(t, rs.configures, "expected a configure event")
	return rs.configures[len(rs.configures)-1]
}

// memSource is an in-memory BufferSource.
type memSource struct {
	w, h, stride int32
	pix          []byte
}

func newMemSource(w, h int) *memSource {
	return &memSource{
		w:      int32(w),
		h:      int32(h),
		stride: int32(w * 4),
		pix:    make([]byte, w*h*4),
	}
}

func (m *memSource) Size() (int32, int32) { return m.w, m.h }
func (m *memSource) Stride() int32        { return m.stride }
func (m *memSource) Format() PixelFormat  { return FormatARGB8888 }
func (m *memSource) Pixels() []byte       { return m.pix }

func newTestClient(t *testing.T, cfg *Config) (*Compositor, *Client, *recordSink) {
	t.Helper()

	c := New(cfg, nil)
	c.AddOutput(&Output{Name: "test-0", Size: image.Pt(800, 600), Scale: 1})

	sink := new(recordSink)
	cl, err := c.AddClient("test-client", sink)
	require.NoError(t, err)
	return c, cl, sink
}

// mapToplevel runs a surface through the whole happy path: create it,
// give it a toplevel role, acknowledge the initial configure, attach
// src, and commit.
func mapToplevel(t *testing.T, cl *Client, sink *recordSink, surfaceID, shellID, bufID uint32, src BufferSource) (*Surface, *ShellSurface, *Buffer) {
	t.Helper()

	s, err := cl.CreateSurface(surfaceID)
	require.NoError(t, err)
	sh, err := cl.CreateShell(shellID, s, RoleToplevel, nil, image.Point{})
	require.NoError(t, err)
	sh.Ack(sink.lastConfigure(t).serial)

	b, err := cl.CreateBuffer(bufID, src)
	require.NoError(t, err)
	s.Attach(b, 0, 0)
	require.NoError(t, s.Commit())
	return s, sh, b
}

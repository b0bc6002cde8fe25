package comp

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitBufferWithoutRole(t *testing.T) {
	_, cl, _ := newTestClient(t, nil)

	s, err := cl.CreateSurface(2)
	require.NoError(t, err)
	b, err := cl.CreateBuffer(3, newMemSource(8, 8))
	require.NoError(t, err)

	s.Attach(b, 0, 0)
	err = s.Commit()
	require.Error(t, err)
	assert.Equal(t, ClassState, ClassOf(err))
}

func TestCommitIsAtomic(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)

	s, err := cl.CreateSurface(2)
	require.NoError(t, err)
	sh, err := cl.CreateShell(3, s, RoleToplevel, nil, image.Point{})
	require.NoError(t, err)
	sh.Ack(sink.lastConfigure(t).serial)

	b, err := cl.CreateBuffer(4, newMemSource(8, 8))
	require.NoError(t, err)
	s.Attach(b, 1, 2)
	s.Damage(image.Rect(0, 0, 4, 4))

	// Nothing is visible before the commit.
	assert.Nil(t, s.Current().Buffer)
	assert.Empty(t, c.Stacking())

	require.NoError(t, s.Commit())
	cur := s.Current()
	assert.Same(t, b, cur.Buffer)
	assert.Equal(t, image.Pt(1, 2), cur.Offset)
	assert.Equal(t, uint64(1), cur.Seq)
	assert.Len(t, c.Stacking(), 1)
}

func TestAttachReplacesUncommitted(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)

	s, err := cl.CreateSurface(2)
	require.NoError(t, err)
	_, err = cl.CreateShell(3, s, RoleToplevel, nil, image.Point{})
	require.NoError(t, err)

	b1, err := cl.CreateBuffer(4, newMemSource(8, 8))
	require.NoError(t, err)
	b2, err := cl.CreateBuffer(5, newMemSource(8, 8))
	require.NoError(t, err)

	// b1 never gets committed; re-attaching hands it straight back.
	s.Attach(b1, 0, 0)
	s.Attach(b2, 0, 0)
	assert.Equal(t, []uint32{4}, sink.released)
	assert.Zero(t, c.Tracker().Refs(b1))
	assert.Equal(t, 1, c.Tracker().Refs(b2))
}

func TestCommitHoldsSingleReference(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)
	_, _, b := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(8, 8))

	// The committed buffer is referenced once even though both the
	// surface's current state and the outbox frame name it.
	assert.Equal(t, 1, c.Tracker().Refs(b))
	assert.Empty(t, sink.released)
}

func TestReplacedBufferReleasedOnCommit(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)
	s, _, b1 := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(8, 8))

	b2, err := cl.CreateBuffer(5, newMemSource(8, 8))
	require.NoError(t, err)
	s.Attach(b2, 0, 0)
	assert.Empty(t, sink.released, "buffer released before its replacement was committed")

	require.NoError(t, s.Commit())
	assert.Equal(t, []uint32{4}, sink.released)
	assert.Zero(t, c.Tracker().Refs(b1))
	assert.Equal(t, 1, c.Tracker().Refs(b2))
}

func TestDamageAccumulatesUntilCommit(t *testing.T) {
	_, cl, sink := newTestClient(t, nil)
	s, _, _ := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(16, 16))

	s.Damage(image.Rect(0, 0, 4, 4))
	s.Damage(image.Rect(8, 8, 12, 12))
	require.NoError(t, s.Commit())

	cur := s.Current()
	assert.True(t, cur.Damage.Contains(image.Pt(1, 1)))
	assert.True(t, cur.Damage.Contains(image.Pt(9, 9)))

	// The commit consumed the pending damage.
	require.NoError(t, s.Commit())
	assert.True(t, s.Current().Damage.Empty())
}

func TestCommitNilBufferUnmaps(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)
	s, _, _ := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(8, 8))
	require.Len(t, c.Stacking(), 1)

	s.Attach(nil, 0, 0)
	require.NoError(t, s.Commit())

	assert.Empty(t, c.Stacking())
	assert.Nil(t, s.Current().Buffer)
	assert.Equal(t, []uint32{4}, sink.released)
}

func TestCommitsCoalesceInOutbox(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)
	s, _, _ := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(16, 16))

	// Drain the frame the initial commit published.
	for _, f := range c.Bridge().Frames() {
		c.Bridge().Release(f)
	}

	b2, err := cl.CreateBuffer(5, newMemSource(16, 16))
	require.NoError(t, err)
	s.Damage(image.Rect(0, 0, 4, 4))
	require.NoError(t, s.Commit())

	s.Attach(b2, 0, 0)
	s.Damage(image.Rect(8, 8, 12, 12))
	require.NoError(t, s.Commit())

	// Two commits before the renderer got around to looking: one
	// frame, newest content, both damage regions.
	frames := c.Bridge().Frames()
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Same(t, b2, f.Buffer)
	assert.Equal(t, uint64(3), f.Seq)
	assert.True(t, f.Damage.Contains(image.Pt(1, 1)))
	assert.True(t, f.Damage.Contains(image.Pt(9, 9)))

	// Releasing the checkout leaves the surface's own reference; the
	// superseded buffer went back to the client when the second commit
	// replaced it.
	c.Bridge().Release(f)
	assert.Equal(t, 1, c.Tracker().Refs(b2))
	assert.Equal(t, []uint32{4}, sink.released)
}

func TestDestroySurface(t *testing.T) {
	c, cl, sink := newTestClient(t, nil)
	s, _, _ := mapToplevel(t, cl, sink, 2, 3, 4, newMemSource(8, 8))
	id := s.ID()

	require.NoError(t, cl.Destroy(2))

	_, ok := c.Surface(id)
	assert.False(t, ok, "handle still resolves after destruction")
	assert.Empty(t, c.Stacking())
	assert.Equal(t, []uint32{4}, sink.released)

	// Requests against a destroyed surface are ignored rather than
	// crashing the engine.
	s.Attach(nil, 0, 0)
	s.Damage(image.Rect(0, 0, 1, 1))
	err := s.Commit()
	require.Error(t, err)
	assert.Equal(t, ClassState, ClassOf(err))
}

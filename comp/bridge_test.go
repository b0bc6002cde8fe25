package comp

import (
	"image"
	"testing"

	"deedles.dev/tide/internal/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridgeFixture() (*BufferTracker, *Bridge) {
	var tr BufferTracker
	return &tr, newBridge(&tr)
}

// surfaceIDs mints distinct live handles without a full compositor.
func surfaceIDs(n int) []SurfaceID {
	var a arena.Arena[struct{}]
	ids := make([]SurfaceID, n)
	for i := range ids {
		ids[i] = a.Add(struct{}{})
	}
	return ids
}

// committed simulates the reference a surface's current state holds.
func committed(tr *BufferTracker, wireID uint32) *Buffer {
	b := tr.NewBuffer(nil, wireID, newMemSource(8, 8), nil)
	tr.Ref(b)
	return b
}

func TestBridgeSingleSlot(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b1 := committed(tr, 1)
	b2 := committed(tr, 2)

	br.publish(Frame{Surface: id, Buffer: b1, Seq: 1, Damage: Region{image.Rect(0, 0, 4, 4)}})
	br.publish(Frame{Surface: id, Buffer: b2, Seq: 2, Damage: Region{image.Rect(8, 8, 12, 12)}})

	frames := br.Frames()
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Same(t, b2, f.Buffer)
	assert.Equal(t, uint64(2), f.Seq)
	assert.True(t, f.Damage.Contains(image.Pt(1, 1)), "replaced frame's damage was lost")
	assert.True(t, f.Damage.Contains(image.Pt(9, 9)))

	// Nothing left after checkout.
	assert.Empty(t, br.Frames())
}

func TestBridgeCheckoutReference(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b := committed(tr, 1)

	br.publish(Frame{Surface: id, Buffer: b, Seq: 1})
	assert.Equal(t, 1, tr.Refs(b), "a parked frame must not pin the buffer")

	frames := br.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 2, tr.Refs(b), "checkout must pin the buffer")

	br.Release(frames[0])
	assert.Equal(t, 1, tr.Refs(b))
}

func TestBridgeRequeue(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b := committed(tr, 1)

	br.publish(Frame{Surface: id, Buffer: b, Seq: 1})
	frames := br.Frames()
	require.Len(t, frames, 1)

	br.Requeue(frames[0])
	assert.Equal(t, 2, tr.Refs(b), "requeue must keep the checkout reference")

	// The retried checkout must not take a second reference.
	frames = br.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 2, tr.Refs(b))

	br.Release(frames[0])
	assert.Equal(t, 1, tr.Refs(b))
}

func TestBridgeRequeueSuperseded(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b1 := committed(tr, 1)
	b2 := committed(tr, 2)

	br.publish(Frame{Surface: id, Buffer: b1, Seq: 1, Damage: Region{image.Rect(0, 0, 4, 4)}})
	frames := br.Frames()
	require.Len(t, frames, 1)

	// A newer frame lands while the old one is checked out; requeueing
	// the old one keeps only its damage.
	br.publish(Frame{Surface: id, Buffer: b2, Seq: 2, Damage: Region{image.Rect(8, 8, 12, 12)}})
	br.Requeue(frames[0])
	assert.Equal(t, 1, tr.Refs(b1), "superseded frame must drop its checkout reference")

	frames = br.Frames()
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Same(t, b2, f.Buffer)
	assert.True(t, f.Damage.Contains(image.Pt(1, 1)))
	assert.True(t, f.Damage.Contains(image.Pt(9, 9)))
}

func TestBridgeUnmap(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b := committed(tr, 1)

	br.publish(Frame{Surface: id, Buffer: b, Seq: 1})
	br.unmap(id)

	assert.Empty(t, br.Frames())
	assert.Equal(t, []SurfaceID{id}, br.Unmapped())
	assert.Empty(t, br.Unmapped(), "unmap notifications must drain")
	assert.Equal(t, 1, tr.Refs(b))
}

func TestBridgeRequeueAfterUnmap(t *testing.T) {
	tr, br := newBridgeFixture()
	id := surfaceIDs(1)[0]
	b := committed(tr, 1)

	br.publish(Frame{Surface: id, Buffer: b, Seq: 1})
	frames := br.Frames()
	require.Len(t, frames, 1)

	br.unmap(id)
	br.Requeue(frames[0])
	assert.Equal(t, 1, tr.Refs(b), "requeue into a vanished slot must release")
	assert.Empty(t, br.Frames())
}

package comp

import "sync"

// PixelFormat identifies the layout of a buffer's pixel memory.
type PixelFormat uint32

const (
	FormatARGB8888 PixelFormat = iota
	FormatXRGB8888
)

func (f PixelFormat) String() string {
	switch f {
	case FormatARGB8888:
		return "argb8888"
	case FormatXRGB8888:
		return "xrgb8888"
	}
	return "unknown"
}

// A BufferSource is a producer-owned pixel region. The engine never
// copies or frees the memory behind it; it only reads it between a
// commit and the matching release notification.
type BufferSource interface {
	Size() (w, h int32)
	Stride() int32
	Format() PixelFormat
	Pixels() []byte
}

// A Buffer is a shared reference to a producer-owned pixel region. Its
// lifetime is governed by the BufferTracker's reference count: the
// producer is told the memory is reusable exactly once each time the
// count drops back to zero.
type Buffer struct {
	wireID  uint32
	client  *Client
	source  BufferSource
	release func(*Buffer)

	refs     int
	released bool
	orphaned bool
}

// WireID returns the protocol id the owning client knows this buffer
// by.
func (b *Buffer) WireID() uint32 { return b.wireID }

// Source returns the producer-owned pixel region.
func (b *Buffer) Source() BufferSource { return b.source }

// BufferTracker reference-counts shared buffers. It is the one piece
// of engine state touched from both the protocol path and the
// renderer, so it carries its own lock; everything it does under that
// lock is O(1).
type BufferTracker struct {
	mu sync.Mutex
}

// NewBuffer registers a buffer whose pixels come from source. release
// is the producer's reclaim notification.
func (t *BufferTracker) NewBuffer(client *Client, wireID uint32, source BufferSource, release func(*Buffer)) *Buffer {
	return &Buffer{
		wireID:  wireID,
		client:  client,
		source:  source,
		release: release,
	}
}

// Ref records one more reference to b.
func (t *BufferTracker) Ref(b *Buffer) {
	if b == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b.refs++
	b.released = false
}

// Unref drops one reference to b. When the count reaches zero the
// producer's release notification fires, exactly once per drop to
// zero.
func (t *BufferTracker) Unref(b *Buffer) {
	if b == nil {
		return
	}

	t.mu.Lock()
	if b.refs > 0 {
		b.refs--
	}
	fire := b.refs == 0 && !b.released && !b.orphaned
	if fire {
		b.released = true
	}
	release := b.release
	t.mu.Unlock()

	if fire && release != nil {
		release(b)
	}
}

// Refs returns the current reference count of b.
func (t *BufferTracker) Refs(b *Buffer) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return b.refs
}

// Orphan marks b's producer as gone. No further release notifications
// are owed; outstanding references simply expire. A renderer that
// still holds the buffer finishes with it and its Unref becomes a
// no-op.
func (t *BufferTracker) Orphan(b *Buffer) {
	if b == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b.orphaned = true
	b.release = nil
}

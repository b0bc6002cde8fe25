package shm

import (
	"fmt"
	"image"
	"os"
	"runtime"

	"deedles.dev/tide/comp"
	ximage "deedles.dev/ximage/format"
	"golang.org/x/sys/unix"
)

// A Pool is the server-side view of a client's shared memory file,
// mapped read-only. Buffers are windows into it.
type Pool struct {
	file *os.File
	mmap Mmap
	size int32

	// retired holds superseded mappings that buffers in flight may
	// still be reading from. They are unmapped with the pool.
	retired []Mmap
}

// NewPool maps size bytes of the client-provided file. It takes
// ownership of file.
func NewPool(file *os.File, size int32) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size: %v", size)
	}

	mmap, err := Map(file, int(size), unix.PROT_READ)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap pool: %w", err)
	}

	return &Pool{
		file: file,
		mmap: mmap,
		size: size,
	}, nil
}

// Size returns the pool's mapped size in bytes.
func (p *Pool) Size() int32 { return p.size }

// Resize grows the mapping. Pools never shrink: buffers may still
// point into the old tail.
func (p *Pool) Resize(size int32) error {
	if size < p.size {
		return fmt.Errorf("pool cannot shrink: %v < %v", size, p.size)
	}
	if size == p.size {
		return nil
	}

	mmap, err := Map(p.file, int(size), unix.PROT_READ)
	if err != nil {
		return fmt.Errorf("mmap pool: %w", err)
	}
	p.retired = append(p.retired, p.mmap)
	p.mmap = mmap
	p.size = size
	return nil
}

// Close releases the pool. The backing file closes immediately, but
// the mapping stays valid as long as any buffer view still reaches
// it: a renderer may be reading a checked-out frame that points into
// the pool, so the unmap is deferred to the collector.
func (p *Pool) Close() error {
	err := p.file.Close()
	runtime.SetFinalizer(p, func(p *Pool) {
		p.mmap.Unmap()
		for _, m := range p.retired {
			m.Unmap()
		}
	})
	return err
}

// Buffer carves a pixel buffer out of the pool. The returned view
// satisfies comp.BufferSource.
func (p *Pool) Buffer(offset, w, h, stride int32, format comp.PixelFormat) (*BufferView, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid buffer size: %vx%v", w, h)
	}
	if stride < w*4 {
		return nil, fmt.Errorf("stride %v too small for width %v", stride, w)
	}
	end := int64(offset) + int64(stride)*int64(h)
	if offset < 0 || end > int64(p.size) {
		return nil, fmt.Errorf("buffer [%v, %v) outside pool of size %v", offset, end, p.size)
	}

	return &BufferView{
		pool:   p,
		offset: offset,
		w:      w,
		h:      h,
		stride: stride,
		format: format,
	}, nil
}

// A BufferView is one buffer's window into a pool.
type BufferView struct {
	pool   *Pool
	offset int32
	w, h   int32
	stride int32
	format comp.PixelFormat
}

func (v *BufferView) Size() (w, h int32)       { return v.w, v.h }
func (v *BufferView) Stride() int32            { return v.stride }
func (v *BufferView) Format() comp.PixelFormat { return v.format }

func (v *BufferView) Pixels() []byte {
	end := v.offset + v.stride*v.h
	return v.pool.mmap[v.offset:end]
}

// Image returns the buffer's pixels as an image.
func (v *BufferView) Image() *ximage.Image {
	return &ximage.Image{
		Format: ximage.ARGB8888,
		Rect:   image.Rect(0, 0, int(v.w), int(v.h)),
		Pix:    v.Pixels(),
	}
}

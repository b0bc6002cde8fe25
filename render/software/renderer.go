// Package software implements a CPU renderer for committed surface
// frames. It is the reference consumer of the engine's bridge: a
// GPU-backed renderer follows the same pull, upload, release cycle.
package software

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"deedles.dev/tide/comp"
	ximage "deedles.dev/ximage/format"
	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
)

// texture is the renderer-side copy of one surface's pixels.
type texture struct {
	img    *image.RGBA
	bounds image.Rectangle
	seq    uint64
}

// Renderer consumes frames from a bridge at its own cadence and
// composes them into an in-memory framebuffer.
type Renderer struct {
	bridge   *comp.Bridge
	log      *log.Logger
	interval time.Duration

	mu       sync.Mutex
	fb       *image.RGBA
	textures map[comp.SurfaceID]*texture
}

// New creates a renderer with a framebuffer of the given size. maxFPS
// caps the consumption cadence; 0 means uncapped, which still polls
// at millisecond granularity rather than spinning.
func New(bridge *comp.Bridge, size image.Point, logger *log.Logger, maxFPS uint) *Renderer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	interval := time.Millisecond
	if maxFPS > 0 {
		interval = time.Second / time.Duration(maxFPS)
	}

	return &Renderer{
		bridge:   bridge,
		log:      logger,
		interval: interval,
		fb:       image.NewRGBA(image.Rectangle{Max: size}),
		textures: make(map[comp.SurfaceID]*texture),
	}
}

// Serve runs the render loop until ctx is canceled. It satisfies
// suture.Service.
func (r *Renderer) Serve(ctx context.Context) error {
	tick := time.NewTicker(r.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			r.Frame()
		}
	}
}

// Frame runs one render pass: forget vanished surfaces, consume
// pending frames, and compose the result.
func (r *Renderer) Frame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.bridge.Unmapped() {
		delete(r.textures, id)
	}

	for _, f := range r.bridge.Frames() {
		err := r.upload(f)
		if err != nil {
			// The frame stays available for the next pass; the surface
			// is shown stale in the meantime, and the client is never
			// punished for it.
			r.log.Error("upload", "surface", f.Surface, "err", comp.RenderError{Err: err})
			r.bridge.Requeue(f)
			continue
		}
		r.bridge.Release(f)
	}

	r.compose()
}

// upload copies a frame's damaged pixels into the surface's texture.
func (r *Renderer) upload(f comp.Frame) error {
	if f.Buffer == nil {
		return errors.New("frame without buffer")
	}
	src := f.Buffer.Source()
	pix := src.Pixels()
	if pix == nil {
		return errors.New("buffer has no pixels")
	}

	w, h := src.Size()
	local := image.Rect(0, 0, int(w), int(h))

	tex := r.textures[f.Surface]
	if tex != nil && f.Seq <= tex.seq {
		// A late, superseded frame. Drop it.
		return nil
	}
	if tex == nil || tex.img.Bounds() != local {
		tex = &texture{img: image.NewRGBA(local)}
		r.textures[f.Surface] = tex
		// A fresh texture needs every pixel regardless of what the
		// client reported.
		f.Damage = comp.Region{local}
	}
	tex.bounds = f.Bounds
	tex.seq = f.Seq

	if src.Stride() == w*4 {
		view := &ximage.Image{
			Format: ximage.ARGB8888,
			Rect:   local,
			Pix:    pix,
		}
		for _, rect := range f.Damage {
			rect = rect.Intersect(local)
			draw.Draw(tex.img, rect, view, rect.Min, draw.Src)
		}
		return nil
	}

	// Padded rows: copy the damaged spans by hand.
	stride := int(src.Stride())
	for _, rect := range f.Damage {
		rect = rect.Intersect(local)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			si := y*stride + rect.Min.X*4
			di := tex.img.PixOffset(rect.Min.X, y)
			copy(tex.img.Pix[di:di+rect.Dx()*4], pix[si:si+rect.Dx()*4])
		}
	}
	return nil
}

// compose redraws the framebuffer from the current textures, back to
// front.
func (r *Renderer) compose() {
	draw.Draw(r.fb, r.fb.Bounds(), image.Black, image.Point{}, draw.Src)

	stacking := r.bridge.Stacking()
	for i := len(stacking) - 1; i >= 0; i-- {
		tex := r.textures[stacking[i]]
		if tex == nil {
			// The surface vanished between the stacking snapshot and
			// now. Skip it.
			continue
		}
		draw.Draw(r.fb, tex.bounds, tex.img, tex.img.Bounds().Min, draw.Over)
	}
}

// Framebuffer returns a copy of the composed output.
func (r *Renderer) Framebuffer() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := image.NewRGBA(r.fb.Bounds())
	copy(out.Pix, r.fb.Pix)
	return out
}

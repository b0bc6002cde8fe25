package shm

import (
	"bytes"
	"testing"

	"deedles.dev/tide/comp"
)

func newTestPool(t *testing.T, size int32) *Pool {
	t.Helper()

	file, err := Create()
	if err != nil {
		t.Fatalf("create shm file: %v", err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	pool, err := NewPool(file, size)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestPoolSharesMemory(t *testing.T) {
	pool := newTestPool(t, 64)

	view, err := pool.Buffer(0, 4, 4, 16, comp.FormatARGB8888)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}

	// Writes through the file are visible through the mapping without
	// any copy.
	want := bytes.Repeat([]byte{0xAB}, 16)
	if _, err := pool.file.WriteAt(want, 16); err != nil {
		t.Fatalf("write: %v", err)
	}

	pix := view.Pixels()
	if len(pix) != 64 {
		t.Fatalf("len(Pixels()) = %v, want 64", len(pix))
	}
	if !bytes.Equal(pix[16:32], want) {
		t.Error("file write did not show up in the mapping")
	}
}

func TestPoolBufferValidation(t *testing.T) {
	pool := newTestPool(t, 64)

	tests := []struct {
		name                 string
		offset, w, h, stride int32
	}{
		{"zero size", 0, 0, 4, 16},
		{"negative offset", -16, 4, 4, 16},
		{"stride smaller than row", 0, 4, 4, 8},
		{"past the end", 16, 4, 4, 16},
		{"way past the end", 0, 100, 100, 400},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := pool.Buffer(test.offset, test.w, test.h, test.stride, comp.FormatARGB8888)
			if err == nil {
				t.Error("invalid buffer accepted")
			}
		})
	}

	if _, err := pool.Buffer(0, 4, 4, 16, comp.FormatXRGB8888); err != nil {
		t.Errorf("valid buffer rejected: %v", err)
	}
}

func TestPoolResize(t *testing.T) {
	pool := newTestPool(t, 64)

	if err := pool.Resize(32); err == nil {
		t.Error("pool shrank")
	}

	if err := pool.file.Truncate(128); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := pool.Resize(128); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if pool.Size() != 128 {
		t.Errorf("Size() = %v, want 128", pool.Size())
	}

	// The tail of the grown pool is usable.
	if _, err := pool.Buffer(64, 4, 4, 16, comp.FormatARGB8888); err != nil {
		t.Errorf("buffer in grown tail rejected: %v", err)
	}
}

func TestPoolInvalidSize(t *testing.T) {
	file, err := Create()
	if err != nil {
		t.Fatalf("create shm file: %v", err)
	}
	if _, err := NewPool(file, 0); err == nil {
		t.Error("zero-size pool accepted")
	}
}

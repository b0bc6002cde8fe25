// Package wire implements the socket-level framing of the tide
// protocol: length-prefixed messages over a Unix domain socket, with
// file descriptors carried out-of-band as ancillary data.
package wire

import (
	"io"
	"unsafe"
)

func bytes4[T ~int32 | ~uint32](v T) [4]byte {
	return *(*[4]byte)(unsafe.Pointer(&v))
}

func value4[T ~int32 | ~uint32](data [4]byte) T {
	return *(*T)(unsafe.Pointer(&data))
}

func read[T ~int32 | ~uint32](r io.Reader) (T, error) {
	var data [4]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return 0, err
	}

	return value4[T](data), nil
}

func write[T ~int32 | ~uint32](w io.Writer, v T) error {
	data := bytes4(v)
	n, err := w.Write(data[:])
	if (err == nil) && (n < len(data)) {
		return io.ErrShortWrite
	}
	return err
}

// padding returns the number of bytes needed to pad n up to a 32-bit
// boundary.
func padding(n uint32) uint32 {
	return (4 - n%4) % 4
}

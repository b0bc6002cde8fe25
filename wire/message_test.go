package wire

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fdConn(t, fds[0]), fdConn(t, fds[1])
}

func fdConn(t *testing.T, fd int) *Conn {
	t.Helper()

	f := os.NewFile(uintptr(fd), "socketpair")
	defer f.Close()
	nc, err := net.FileConn(f)
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}
	c := NewConn(nc.(*net.UnixConn))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMessageRoundTrip(t *testing.T) {
	a, b := socketpair(t)

	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	payload, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer payload.Close()

	mb := NewMessage(3, 7)
	mb.WriteUint(42)
	mb.WriteInt(-5)
	mb.WriteFixed(FixedFloat(2.5))
	mb.WriteString("hello")
	mb.WriteFile(payload)
	if err := mb.Build(a); err != nil {
		t.Fatalf("Build: %v", err)
	}

	msg, err := ReadMessage(b)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Sender() != 3 || msg.Op() != 7 {
		t.Fatalf("header = %v.%v, want 3.7", msg.Sender(), msg.Op())
	}

	if got := msg.ReadUint(); got != 42 {
		t.Errorf("ReadUint() = %v", got)
	}
	if got := msg.ReadInt(); got != -5 {
		t.Errorf("ReadInt() = %v", got)
	}
	if got := msg.ReadFixed().Float(); got != 2.5 {
		t.Errorf("ReadFixed() = %v", got)
	}
	if got := msg.ReadString(); got != "hello" {
		t.Errorf("ReadString() = %q", got)
	}

	f := msg.ReadFile()
	if f == nil {
		t.Fatal("ReadFile() = nil")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || string(data) != "pixels" {
		t.Errorf("passed file content = %q, %v", data, err)
	}

	if err := msg.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestShortMessage(t *testing.T) {
	a, b := socketpair(t)

	mb := NewMessage(2, 0)
	mb.WriteUint(1)
	if err := mb.Build(a); err != nil {
		t.Fatalf("Build: %v", err)
	}

	msg, err := ReadMessage(b)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	// Reading past the end poisons the buffer rather than panicking.
	msg.ReadUint()
	msg.ReadUint()
	if msg.Err() != io.ErrUnexpectedEOF {
		t.Errorf("Err() = %v, want %v", msg.Err(), io.ErrUnexpectedEOF)
	}
}

func TestFixed(t *testing.T) {
	tests := []struct {
		f    Fixed
		want float64
	}{
		{FixedInt(0), 0},
		{FixedInt(5), 5},
		{FixedInt(-3), -3},
		{FixedFloat(2.5), 2.5},
		{FixedFloat(0.25), 0.25},
	}
	for _, test := range tests {
		if got := test.f.Float(); got != test.want {
			t.Errorf("Float() = %v, want %v", got, test.want)
		}
	}

	if FixedInt(7).Int() != 7 {
		t.Error("Int() round trip failed")
	}
	if FixedFloat(2.5).String() != "2.128" {
		t.Errorf("String() = %q", FixedFloat(2.5).String())
	}
}

package wire

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"deedles.dev/tide/internal/set"
)

func runtimeDir() string {
	dir, ok := os.LookupEnv("XDG_RUNTIME_DIR")
	if ok {
		return dir
	}
	return fmt.Sprintf("/var/run/user/%v", os.Getuid())
}

// SocketPath determines the path to the display socket based on the
// contents of the $TIDE_DISPLAY environment variable. It does not
// attempt to determine if the value corresponds to an actual socket.
func SocketPath() string {
	v, ok := os.LookupEnv("TIDE_DISPLAY")
	if !ok {
		v = "tide-0"
	}
	if filepath.IsAbs(v) {
		return v
	}

	return filepath.Join(runtimeDir(), v)
}

// NewSocketPath generates a path for a new display socket to listen
// on, picking the first unused tide-N name in the runtime directory.
func NewSocketPath() (string, error) {
	dir := runtimeDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make(set.Set[int], len(entries))
	for _, ent := range entries {
		after, ok := strings.CutPrefix(ent.Name(), "tide-")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(after, 10, 0)
		if err != nil {
			continue
		}
		names.Add(int(n))
	}

	var num int
	for names.Has(num) {
		num++
	}

	return filepath.Join(dir, fmt.Sprintf("tide-%v", num)), nil
}

// Listen opens a listening display socket at a freshly generated
// path. The caller is expected to advertise the returned listener's
// address to clients via $TIDE_DISPLAY.
func Listen() (*net.UnixListener, error) {
	path, err := NewSocketPath()
	if err != nil {
		return nil, fmt.Errorf("find socket path: %w", err)
	}
	lis, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %v: %w", path, err)
	}
	return lis, nil
}

// Conn is a low-level protocol connection.
type Conn struct {
	conn *net.UnixConn
}

// NewConn creates a new Conn that wraps c. After this is called, use
// the provided Close method to close c instead of calling its own
// Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{conn: c}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Dial opens a connection to the display socket based on the current
// environment.
func Dial() (*Conn, error) {
	s, err := net.Dial("unix", SocketPath())
	if err != nil {
		return nil, err
	}
	return NewConn(s.(*net.UnixConn)), nil
}

// Package server speaks the tide wire protocol to clients and feeds
// the decoded requests into the engine. All engine state is mutated
// from a single protocol thread: connection goroutines only read from
// sockets and enqueue work, and Flush drains that work one request at
// a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"deedles.dev/tide/comp"
	"deedles.dev/tide/internal/cq"
	"deedles.dev/tide/internal/set"
	"deedles.dev/tide/wire"
	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// flushRate is the cadence of the protocol thread.
const flushRate = time.Second / 240

type Server struct {
	done  chan struct{}
	close sync.Once

	comp    *comp.Compositor
	log     *log.Logger
	lis     *net.UnixListener
	clients set.Set[*Client]
	queue   *cq.Queue[func() error]
}

// ListenAndServe listens on a freshly allocated display socket.
func ListenAndServe(c *comp.Compositor, logger *log.Logger) (*Server, error) {
	lis, err := wire.Listen()
	if err != nil {
		return nil, comp.SystemError{Err: err}
	}
	return New(c, lis, logger), nil
}

// New creates a server for an already-open listener.
func New(c *comp.Compositor, lis *net.UnixListener, logger *log.Logger) *Server {
	server := Server{
		done:    make(chan struct{}),
		comp:    c,
		log:     logger,
		lis:     lis,
		clients: make(set.Set[*Client]),
		queue:   cq.New[func() error](),
	}
	go server.listen()

	return &server
}

// Addr returns the listening socket's address.
func (server *Server) Addr() net.Addr {
	return server.lis.Addr()
}

func (server *Server) listen() {
	for {
		c, err := server.lis.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-server.done:
				return
			case server.queue.Add() <- func() error { return err }:
				continue
			}
		}

		select {
		case <-server.done:
			return
		case server.queue.Add() <- func() error { server.addClient(c); return nil }:
		}
	}
}

// addClient runs admission control and, if the connection is allowed,
// starts serving it. Runs on the protocol thread.
func (server *Server) addClient(c *net.UnixConn) {
	name := peerName(c)
	client := newClient(server, wire.NewConn(c))
	cc, err := server.comp.AddClient(name, client)
	if err != nil {
		server.log.Warn("client rejected", "name", name, "err", err)
		client.conn.Close()
		return
	}

	client.start(cc)
	server.clients.Add(client)
}

func (server *Server) removeClient(client *Client) {
	server.clients.Delete(client)
}

// peerName identifies a connecting process by its comm name, for the
// allow/deny patterns and for logging.
func peerName(c *net.UnixConn) string {
	var cred *unix.Ucred
	raw, err := c.SyscallConn()
	if err == nil {
		raw.Control(func(fd uintptr) {
			cred, err = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		})
	}
	if err != nil || cred == nil {
		return "unknown"
	}

	comm, err := os.ReadFile(fmt.Sprintf("/proc/%v/comm", cred.Pid))
	if err != nil {
		return fmt.Sprintf("pid-%v", cred.Pid)
	}
	return strings.TrimSpace(string(comm))
}

// Flush runs the protocol thread's pending work: accepted
// connections, decoded requests, and queued outgoing events. It must
// always be called from the same goroutine.
func (server *Server) Flush() error {
	var errs []error

	select {
	case queue := <-server.queue.Get():
		for _, fn := range queue {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
	default:
	}

	for client := range server.clients {
		client.flush()
	}
	return errors.Join(errs...)
}

// Serve runs the protocol thread until ctx is canceled. It satisfies
// suture.Service.
func (server *Server) Serve(ctx context.Context) error {
	tick := time.NewTicker(flushRate)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			server.Close()
			return ctx.Err()
		case <-server.done:
			return nil
		case <-tick.C:
			err := server.Flush()
			if err != nil {
				server.log.Error("flush", "err", err)
			}
		}
	}
}

// Do schedules fn onto the protocol thread. It is how external event
// sources, such as host input, get at the engine safely.
func (server *Server) Do(fn func()) {
	select {
	case <-server.done:
	case server.queue.Add() <- func() error { fn(); return nil }:
	}
}

// Close stops accepting and tears down every client.
func (server *Server) Close() error {
	var err error
	server.close.Do(func() {
		close(server.done)
		err = server.lis.Close()
		for client := range server.clients {
			client.kill(nil)
		}
		server.queue.Stop()
	})
	return err
}

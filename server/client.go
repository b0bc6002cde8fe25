package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"deedles.dev/tide/comp"
	"deedles.dev/tide/internal/cq"
	"deedles.dev/tide/wire"
	"github.com/charmbracelet/log"
)

// Client is one protocol connection. Its listen goroutine only reads
// and enqueues; every request is dispatched on the protocol thread by
// flush.
type Client struct {
	server *Server
	done   chan struct{}
	close  sync.Once
	conn   *wire.Conn
	comp   *comp.Client
	log    *log.Logger
	queue  *cq.Queue[func() error]

	seatID uint32
	serial uint32
}

func newClient(server *Server, conn *wire.Conn) *Client {
	return &Client{
		server: server,
		done:   make(chan struct{}),
		conn:   conn,
		queue:  cq.New[func() error](),
	}
}

// start begins serving requests once admission control has passed and
// the engine-side client exists.
func (client *Client) start(cc *comp.Client) {
	client.comp = cc
	client.log = client.server.log.With("client", cc.UUID())
	go client.listen()
}

func (client *Client) listen() {
	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				client.disconnect()
				return
			}

			select {
			case <-client.done:
				return
			case client.queue.Add() <- func() error { return err }:
				continue
			}
		}

		select {
		case <-client.done:
			return
		case client.queue.Add() <- func() error { return client.dispatch(msg) }:
		}
	}
}

// disconnect schedules the client's teardown onto the protocol
// thread.
func (client *Client) disconnect() {
	select {
	case <-client.done:
	case client.queue.Add() <- func() error { client.kill(nil); return nil }:
	}
}

// Enqueue schedules an outgoing event. Safe to call from any
// goroutine; the write happens on the protocol thread.
func (client *Client) Enqueue(msg *wire.MessageBuilder) {
	select {
	case <-client.done:
	case client.queue.Add() <- func() error {
		client.log.Debug("send", "msg", msg)
		return msg.Build(client.conn)
	}:
	}
}

// flush runs the client's pending work and reacts to its errors:
// protocol and state faults terminate the client, resource faults
// reject the single request, and nothing a client does can take down
// anything but itself.
func (client *Client) flush() {
	var queue []func() error
	select {
	case queue = <-client.queue.Get():
	default:
		return
	}

	for _, fn := range queue {
		err := fn()
		if err == nil {
			continue
		}

		switch class := comp.ClassOf(err); class {
		case comp.ClassResource:
			client.log.Warn("request rejected", "err", err)
			client.sendError(errCodeResource, err)
		case comp.ClassRender:
			client.log.Error("render fault", "err", err)
		default:
			client.log.Warn("client terminated", "class", class, "err", err)
			client.kill(err)
			return
		}
	}
}

// kill terminates the connection and cascades the destruction of
// everything the client owns. Runs on the protocol thread.
func (client *Client) kill(cause error) {
	client.close.Do(func() {
		if cause != nil {
			code := errCodeProtocol
			if comp.ClassOf(cause) == comp.ClassState {
				code = errCodeState
			}
			client.sendErrorNow(code, cause)
		}

		close(client.done)
		client.queue.Stop()
		client.conn.Close()
		if client.comp != nil {
			client.comp.Close()
		}
		client.server.removeClient(client)
	})
}

func (client *Client) sendError(code uint32, err error) {
	msg := errorMessage(code, err)
	select {
	case <-client.done:
	case client.queue.Add() <- func() error { return msg.Build(client.conn) }:
	}
}

// sendErrorNow writes the error event synchronously; used on the way
// out, when the queue is about to die with the client.
func (client *Client) sendErrorNow(code uint32, err error) {
	errorMessage(code, err).Build(client.conn)
}

func errorMessage(code uint32, err error) *wire.MessageBuilder {
	msg := wire.NewMessage(DisplayID, displayEventError)
	msg.Method = "error"
	msg.WriteUint(code)
	msg.WriteString(err.Error())
	return msg
}

package comp

import (
	"fmt"
	"image"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
)

// Kind identifies the typed object bound to a protocol id.
type Kind int

const (
	KindSurface Kind = iota
	KindBuffer
	KindPool
	KindShell
	KindOutput
	KindSeat
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindBuffer:
		return "buffer"
	case KindPool:
		return "pool"
	case KindShell:
		return "shell surface"
	case KindOutput:
		return "output"
	case KindSeat:
		return "seat"
	case KindCallback:
		return "callback"
	}
	return "unknown"
}

// A Resource is one typed object bound to a protocol id in a client's
// namespace.
type Resource struct {
	ID    uint32
	Kind  Kind
	Value any
}

// An EventSink receives the events the engine emits towards one
// client. The transport layer implements it by marshalling onto the
// wire; tests implement it directly. Sink methods must not block: the
// transport enqueues and returns.
type EventSink interface {
	// Configure proposes geometry and window state for a shell
	// surface. The client must acknowledge serial before its next
	// commit is valid.
	Configure(sh *ShellSurface, serial uint32, size image.Point, state WindowState)

	PointerEnter(s *Surface, pos image.Point)
	PointerLeave(s *Surface)
	PointerMotion(s *Surface, pos image.Point, time uint32)
	PointerButton(s *Surface, button uint32, pressed bool, time uint32)
	Key(s *Surface, key uint32, pressed bool, time uint32)

	// BufferRelease tells the producer that the pixel memory behind b
	// is no longer being read. May be called from the renderer's
	// schedule.
	BufferRelease(b *Buffer)
}

// A Client owns one protocol connection's object namespace. The
// registry is the exclusive owner of every resource in it and destroys
// them all when the connection goes away.
type Client struct {
	comp *Compositor
	id   uuid.UUID
	name string
	sink EventSink
	log  *log.Logger

	resources map[uint32]Resource
	memory    int64
	dead      bool
}

// AddClient admits a new client connection. It enforces max_clients
// and the allow/deny patterns, rejecting over-limit or denied clients
// before any resource is created.
func (c *Compositor) AddClient(name string, sink EventSink) (*Client, error) {
	if !c.cfg.AllowsClient(name) {
		return nil, DeniedError{Name: name}
	}
	if max := c.cfg.MaxClients; max != 0 && uint(c.clients.Len()) >= max {
		return nil, LimitError{Limit: "max_clients"}
	}

	client := Client{
		comp:      c,
		id:        uuid.New(),
		name:      name,
		sink:      sink,
		resources: make(map[uint32]Resource),
	}
	client.log = c.log.With("client", client.id, "name", name)
	c.clients.Add(&client)
	client.log.Debug("client admitted")
	return &client, nil
}

func (cl *Client) UUID() uuid.UUID { return cl.id }
func (cl *Client) Name() string    { return cl.name }
func (cl *Client) Sink() EventSink { return cl.sink }
func (cl *Client) String() string  { return fmt.Sprintf("%v (%v)", cl.name, cl.id) }

// Add binds v to id in the client's namespace.
func (cl *Client) Add(id uint32, kind Kind, v any) error {
	if _, ok := cl.resources[id]; ok {
		return DuplicateIDError{ID: id}
	}
	cl.resources[id] = Resource{ID: id, Kind: kind, Value: v}
	return nil
}

// Get resolves id in the client's namespace.
func (cl *Client) Get(id uint32) (Resource, error) {
	res, ok := cl.resources[id]
	if !ok {
		return Resource{}, UnknownIDError{ID: id}
	}
	return res, nil
}

func (cl *Client) get(id uint32, kind Kind) (Resource, error) {
	res, err := cl.Get(id)
	if err != nil {
		return Resource{}, err
	}
	if res.Kind != kind {
		return Resource{}, WrongKindError{ID: id, Want: kind, Got: res.Kind}
	}
	return res, nil
}

// Surface resolves id to a surface.
func (cl *Client) Surface(id uint32) (*Surface, error) {
	res, err := cl.get(id, KindSurface)
	if err != nil {
		return nil, err
	}
	return res.Value.(*Surface), nil
}

// Buffer resolves id to a buffer.
func (cl *Client) Buffer(id uint32) (*Buffer, error) {
	res, err := cl.get(id, KindBuffer)
	if err != nil {
		return nil, err
	}
	return res.Value.(*Buffer), nil
}

// Shell resolves id to a shell surface.
func (cl *Client) Shell(id uint32) (*ShellSurface, error) {
	res, err := cl.get(id, KindShell)
	if err != nil {
		return nil, err
	}
	return res.Value.(*ShellSurface), nil
}

// CreateSurface creates a fresh surface bound to id.
func (cl *Client) CreateSurface(id uint32) (*Surface, error) {
	s := &Surface{
		wireID: id,
		client: cl,
		comp:   cl.comp,
	}
	s.id = cl.comp.surfaces.Add(s)
	err := cl.Add(id, KindSurface, s)
	if err != nil {
		cl.comp.surfaces.Remove(s.id)
		return nil, err
	}
	return s, nil
}

// CreateBuffer creates a buffer bound to id whose pixels come from
// source. The release notification goes to the client's event sink.
func (cl *Client) CreateBuffer(id uint32, source BufferSource) (*Buffer, error) {
	b := cl.comp.tracker.NewBuffer(cl, id, source, func(b *Buffer) {
		cl.sink.BufferRelease(b)
	})
	err := cl.Add(id, KindBuffer, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Charge accounts n bytes of pixel memory against the client,
// enforcing max_client_memory.
func (cl *Client) Charge(n int64) error {
	if max := cl.comp.cfg.MaxClientMemory; max != 0 && cl.memory+n > max {
		return LimitError{Limit: "max_client_memory"}
	}
	cl.memory += n
	return nil
}

// Refund returns previously charged pixel memory.
func (cl *Client) Refund(n int64) {
	cl.memory -= n
	if cl.memory < 0 {
		cl.memory = 0
	}
}

// Destroy releases the resource bound to id.
func (cl *Client) Destroy(id uint32) error {
	res, err := cl.Get(id)
	if err != nil {
		return err
	}
	delete(cl.resources, id)
	cl.release(res)
	return nil
}

func (cl *Client) release(res Resource) {
	switch v := res.Value.(type) {
	case *Surface:
		cl.comp.destroySurface(v)
	case *ShellSurface:
		// Destroying the role object unmaps the window; the underlying
		// surface survives with its role slot still taken.
		cl.comp.unmapSurface(v.surface)
	case *Buffer:
		// The id is gone from the namespace, so no release event can
		// ever be delivered for it again.
		cl.comp.tracker.Orphan(v)
	case io.Closer:
		v.Close()
	}
}

// Close destroys every resource the client owns. It is called on
// disconnect and must not wait on the renderer: buffers are orphaned
// so any in-flight frames simply expire.
func (cl *Client) Close() {
	if cl.dead {
		return
	}
	cl.dead = true

	// Orphan buffers first so the surface teardown cannot fire release
	// notifications at a connection that no longer exists.
	for _, res := range cl.resources {
		if b, ok := res.Value.(*Buffer); ok {
			cl.comp.tracker.Orphan(b)
		}
	}
	for _, res := range maps.Values(cl.resources) {
		cl.release(res)
	}
	maps.Clear(cl.resources)

	cl.comp.clients.Delete(cl)
	cl.log.Debug("client removed", "memory", cl.memory)
}

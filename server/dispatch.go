package server

import (
	"fmt"
	"image"

	"deedles.dev/tide/comp"
	"deedles.dev/tide/shm"
	"deedles.dev/tide/wire"
)

// dispatch decodes one request and applies it to the engine. Runs on
// the protocol thread.
func (client *Client) dispatch(msg *wire.MessageBuffer) error {
	if msg.Sender() == DisplayID {
		return client.dispatchDisplay(msg)
	}

	res, err := client.comp.Get(msg.Sender())
	if err != nil {
		return err
	}

	switch res.Kind {
	case comp.KindSurface:
		return client.dispatchSurface(res.Value.(*comp.Surface), msg)
	case comp.KindPool:
		return client.dispatchPool(res.ID, res.Value.(*shm.Pool), msg)
	case comp.KindBuffer:
		return client.dispatchBuffer(res.ID, msg)
	case comp.KindShell:
		return client.dispatchShell(res.Value.(*comp.ShellSurface), msg)
	case comp.KindSeat:
		return client.dispatchSeat(res.ID, msg)
	case comp.KindOutput:
		return client.dispatchOutput(res.ID, msg)
	}
	return wire.UnknownSenderIDError{Msg: msg}
}

func (client *Client) dispatchDisplay(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case displayOpSync:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		// Callbacks are transient: the done event is the only thing
		// that ever addresses the new id.
		done := wire.NewMessage(id, callbackEventDone)
		done.Method = "done"
		done.WriteUint(client.serial)
		client.serial++
		client.Enqueue(done)
		return nil

	case displayOpCreateSurface:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		_, err := client.comp.CreateSurface(id)
		return err

	case displayOpCreatePool:
		id := msg.ReadUint()
		file := msg.ReadFile()
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if !client.server.comp.Config().ProtocolEnabled(ProtocolShm) {
			file.Close()
			return fmt.Errorf("protocol %q is disabled", ProtocolShm)
		}

		err := client.comp.Charge(int64(size))
		if err != nil {
			file.Close()
			return err
		}
		pool, err := shm.NewPool(file, size)
		if err != nil {
			client.comp.Refund(int64(size))
			return err
		}
		err = client.comp.Add(id, comp.KindPool, pool)
		if err != nil {
			client.comp.Refund(int64(size))
			pool.Close()
			return err
		}
		return nil

	case displayOpGetSeat:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if !client.server.comp.Config().ProtocolEnabled(ProtocolSeat) {
			return fmt.Errorf("protocol %q is disabled", ProtocolSeat)
		}
		err := client.comp.Add(id, comp.KindSeat, nil)
		if err != nil {
			return err
		}
		client.seatID = id
		return nil

	case displayOpGetOutput:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		outs := client.server.comp.Outputs()
		if len(outs) == 0 {
			return fmt.Errorf("no outputs")
		}
		out := outs[0]
		err := client.comp.Add(id, comp.KindOutput, out)
		if err != nil {
			return err
		}

		geom := wire.NewMessage(id, outputEventGeometry)
		geom.Method = "geometry"
		geom.WriteInt(int32(out.Pos.X))
		geom.WriteInt(int32(out.Pos.Y))
		geom.WriteInt(int32(out.Size.X))
		geom.WriteInt(int32(out.Size.Y))
		geom.WriteFixed(wire.FixedFloat(out.Scale))
		client.Enqueue(geom)
		return nil
	}
	return wire.UnknownOpError{Object: "display", Op: msg.Op()}
}

func (client *Client) dispatchSurface(s *comp.Surface, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case surfaceOpDestroy:
		return client.comp.Destroy(s.WireID())

	case surfaceOpAttach:
		bufID := msg.ReadUint()
		dx := msg.ReadInt()
		dy := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}

		var buf *comp.Buffer
		if bufID != 0 {
			b, err := client.comp.Buffer(bufID)
			if err != nil {
				return err
			}
			buf = b
		}
		s.Attach(buf, dx, dy)
		return nil

	case surfaceOpDamage:
		x := msg.ReadInt()
		y := msg.ReadInt()
		w := msg.ReadInt()
		h := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		s.Damage(image.Rect(int(x), int(y), int(x+w), int(y+h)))
		return nil

	case surfaceOpSetInputRegion:
		reg, err := readRegion(msg)
		if err != nil {
			return err
		}
		s.SetInputRegion(reg)
		return nil

	case surfaceOpSetOpaqueRegion:
		reg, err := readRegion(msg)
		if err != nil {
			return err
		}
		s.SetOpaqueRegion(reg)
		return nil

	case surfaceOpCommit:
		return s.Commit()

	case surfaceOpGetToplevel:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if !client.server.comp.Config().ProtocolEnabled(ProtocolShell) {
			return fmt.Errorf("protocol %q is disabled", ProtocolShell)
		}
		_, err := client.comp.CreateShell(id, s, comp.RoleToplevel, nil, image.Point{})
		return err

	case surfaceOpGetPopup:
		id := msg.ReadUint()
		parentID := msg.ReadUint()
		x := msg.ReadInt()
		y := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if !client.server.comp.Config().ProtocolEnabled(ProtocolShell) {
			return fmt.Errorf("protocol %q is disabled", ProtocolShell)
		}
		parent, err := client.comp.Surface(parentID)
		if err != nil {
			return err
		}
		_, err = client.comp.CreateShell(id, s, comp.RolePopup, parent, image.Pt(int(x), int(y)))
		return err
	}
	return wire.UnknownOpError{Object: "surface", Op: msg.Op()}
}

// readRegion decodes a single-rectangle region. An all-zero rectangle
// means the default region.
func readRegion(msg *wire.MessageBuffer) (comp.Region, error) {
	x := msg.ReadInt()
	y := msg.ReadInt()
	w := msg.ReadInt()
	h := msg.ReadInt()
	if err := msg.Err(); err != nil {
		return nil, err
	}
	if w == 0 && h == 0 {
		return nil, nil
	}
	return comp.Region{image.Rect(int(x), int(y), int(x+w), int(y+h))}, nil
}

func (client *Client) dispatchPool(id uint32, pool *shm.Pool, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case poolOpDestroy:
		client.comp.Refund(int64(pool.Size()))
		return client.comp.Destroy(id)

	case poolOpCreateBuffer:
		bufID := msg.ReadUint()
		offset := msg.ReadInt()
		w := msg.ReadInt()
		h := msg.ReadInt()
		stride := msg.ReadInt()
		format := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		view, err := pool.Buffer(offset, w, h, stride, comp.PixelFormat(format))
		if err != nil {
			return err
		}
		_, err = client.comp.CreateBuffer(bufID, view)
		return err

	case poolOpResize:
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		grow := int64(size) - int64(pool.Size())
		if grow > 0 {
			err := client.comp.Charge(grow)
			if err != nil {
				return err
			}
		}
		err := pool.Resize(size)
		if err != nil && grow > 0 {
			client.comp.Refund(grow)
		}
		return err
	}
	return wire.UnknownOpError{Object: "pool", Op: msg.Op()}
}

func (client *Client) dispatchBuffer(id uint32, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case bufferOpDestroy:
		return client.comp.Destroy(id)
	}
	return wire.UnknownOpError{Object: "buffer", Op: msg.Op()}
}

func (client *Client) dispatchShell(sh *comp.ShellSurface, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shellOpDestroy:
		return client.comp.Destroy(sh.WireID())

	case shellOpAckConfigure:
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		sh.Ack(serial)
		return nil

	case shellOpSetTitle:
		title := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		sh.SetTitle(title)
		return nil

	case shellOpSetMaximized:
		client.server.comp.Maximize(sh)
		return nil
	case shellOpUnsetMaximized:
		client.server.comp.Unmaximize(sh)
		return nil
	case shellOpSetFullscreen:
		client.server.comp.Fullscreen(sh)
		return nil
	case shellOpUnsetFullscreen:
		client.server.comp.Unfullscreen(sh)
		return nil
	}
	return wire.UnknownOpError{Object: "shell surface", Op: msg.Op()}
}

func (client *Client) dispatchSeat(id uint32, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case seatOpRelease:
		client.seatID = 0
		return client.comp.Destroy(id)
	}
	return wire.UnknownOpError{Object: "seat", Op: msg.Op()}
}

func (client *Client) dispatchOutput(id uint32, msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case outputOpRelease:
		return client.comp.Destroy(id)
	}
	return wire.UnknownOpError{Object: "output", Op: msg.Op()}
}

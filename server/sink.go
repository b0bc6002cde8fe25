package server

import (
	"image"

	"deedles.dev/tide/comp"
	"deedles.dev/tide/wire"
)

// Client implements comp.EventSink by marshalling engine events onto
// the wire. Every method only enqueues; the actual write happens on
// the protocol thread.

func (client *Client) Configure(sh *comp.ShellSurface, serial uint32, size image.Point, state comp.WindowState) {
	var flags uint32
	if state.Maximized {
		flags |= stateMaximized
	}
	if state.Fullscreen {
		flags |= stateFullscreen
	}
	if state.Activated {
		flags |= stateActivated
	}

	msg := wire.NewMessage(sh.WireID(), shellEventConfigure)
	msg.Method = "configure"
	msg.WriteUint(serial)
	msg.WriteInt(int32(size.X))
	msg.WriteInt(int32(size.Y))
	msg.WriteUint(flags)
	client.Enqueue(msg)
}

func (client *Client) PointerEnter(s *comp.Surface, pos image.Point) {
	if client.seatID == 0 {
		return
	}
	msg := wire.NewMessage(client.seatID, seatEventPointerEnter)
	msg.Method = "pointer_enter"
	msg.WriteUint(s.WireID())
	msg.WriteFixed(wire.FixedInt(pos.X))
	msg.WriteFixed(wire.FixedInt(pos.Y))
	client.Enqueue(msg)
}

func (client *Client) PointerLeave(s *comp.Surface) {
	if client.seatID == 0 {
		return
	}
	msg := wire.NewMessage(client.seatID, seatEventPointerLeave)
	msg.Method = "pointer_leave"
	msg.WriteUint(s.WireID())
	client.Enqueue(msg)
}

func (client *Client) PointerMotion(s *comp.Surface, pos image.Point, time uint32) {
	if client.seatID == 0 {
		return
	}
	msg := wire.NewMessage(client.seatID, seatEventPointerMotion)
	msg.Method = "pointer_motion"
	msg.WriteUint(time)
	msg.WriteFixed(wire.FixedInt(pos.X))
	msg.WriteFixed(wire.FixedInt(pos.Y))
	client.Enqueue(msg)
}

func (client *Client) PointerButton(s *comp.Surface, button uint32, pressed bool, time uint32) {
	if client.seatID == 0 {
		return
	}
	var state uint32
	if pressed {
		state = 1
	}
	msg := wire.NewMessage(client.seatID, seatEventPointerButton)
	msg.Method = "pointer_button"
	msg.WriteUint(time)
	msg.WriteUint(button)
	msg.WriteUint(state)
	client.Enqueue(msg)
}

func (client *Client) Key(s *comp.Surface, key uint32, pressed bool, time uint32) {
	if client.seatID == 0 {
		return
	}
	var state uint32
	if pressed {
		state = 1
	}
	msg := wire.NewMessage(client.seatID, seatEventKey)
	msg.Method = "key"
	msg.WriteUint(time)
	msg.WriteUint(key)
	msg.WriteUint(state)
	client.Enqueue(msg)
}

func (client *Client) BufferRelease(b *comp.Buffer) {
	msg := wire.NewMessage(b.WireID(), bufferEventRelease)
	msg.Method = "release"
	client.Enqueue(msg)
}

package wire

import "fmt"

// UnknownOpError is returned by a dispatch that is given a message
// with an opcode the target object does not implement.
type UnknownOpError struct {
	Object string
	Op     uint16
}

func (err UnknownOpError) Error() string {
	return fmt.Sprintf("unknown opcode for %v: %v", err.Object, err.Op)
}

// UnknownSenderIDError is returned by an attempt to dispatch an
// incoming message that names an object the receiver doesn't know
// about.
type UnknownSenderIDError struct {
	Msg *MessageBuffer
}

func (err UnknownSenderIDError) Error() string {
	return fmt.Sprintf("unknown sender object ID: %v", err.Msg.Sender())
}

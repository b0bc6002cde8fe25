package comp

import (
	"errors"
	"fmt"
)

// Class categorizes an error by the way the server is expected to
// react to it: terminating the offending client, rejecting a single
// request, degrading output, or aborting startup.
type Class int

const (
	// ClassProtocol is a malformed or out-of-order request. The
	// offending client's connection is terminated.
	ClassProtocol Class = iota

	// ClassState is an illegal state transition mandated by the
	// protocol, such as committing before a configure has been
	// acknowledged. The offending client is terminated.
	ClassState

	// ClassResource is an identifier collision or an exceeded limit.
	// The request or connection is rejected; the client may retry.
	ClassResource

	// ClassRender is a renderer-side fault. The frame is dropped and
	// shown stale; no client is ever terminated for it.
	ClassRender

	// ClassSystem is a startup failure. Fatal.
	ClassSystem
)

func (c Class) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassState:
		return "state"
	case ClassResource:
		return "resource"
	case ClassRender:
		return "render"
	case ClassSystem:
		return "system"
	}
	return "unknown"
}

type classed interface {
	Class() Class
}

// ClassOf returns the Class of err. Errors that do not declare one are
// treated as protocol errors, the most conservative reaction to a
// misbehaving client.
func ClassOf(err error) Class {
	var c classed
	if errors.As(err, &c) {
		return c.Class()
	}
	return ClassProtocol
}

// DuplicateIDError is returned by an attempt to create a resource
// under an id that is already bound in the client's namespace.
type DuplicateIDError struct {
	ID uint32
}

func (err DuplicateIDError) Error() string {
	return fmt.Sprintf("object ID already in use: %v", err.ID)
}

func (DuplicateIDError) Class() Class { return ClassResource }

// UnknownIDError is returned by a lookup of an id that is not bound in
// the client's namespace.
type UnknownIDError struct {
	ID uint32
}

func (err UnknownIDError) Error() string {
	return fmt.Sprintf("unknown object ID: %v", err.ID)
}

func (UnknownIDError) Class() Class { return ClassProtocol }

// WrongKindError is returned when a request targets an object of the
// wrong kind, such as attaching a surface as if it were a buffer.
type WrongKindError struct {
	ID        uint32
	Want, Got Kind
}

func (err WrongKindError) Error() string {
	return fmt.Sprintf("object %v is a %v, not a %v", err.ID, err.Got, err.Want)
}

func (WrongKindError) Class() Class { return ClassProtocol }

// NotConfiguredError is returned by a commit on a shell surface that
// has never acknowledged a configure.
type NotConfiguredError struct {
	Role Role
}

func (err NotConfiguredError) Error() string {
	return fmt.Sprintf("commit on %v surface before configure was acknowledged", err.Role)
}

func (NotConfiguredError) Class() Class { return ClassState }

// InvalidStateError is returned by an illegal state transition, such
// as assigning a second role to a surface.
type InvalidStateError struct {
	Reason string
}

func (err InvalidStateError) Error() string {
	return "invalid state: " + err.Reason
}

func (InvalidStateError) Class() Class { return ClassState }

// LimitError is returned when a request or connection would exceed a
// configured limit.
type LimitError struct {
	Limit string
}

func (err LimitError) Error() string {
	return "configured limit exceeded: " + err.Limit
}

func (LimitError) Class() Class { return ClassResource }

// DeniedError is returned when a connecting client is rejected by the
// allow/deny patterns.
type DeniedError struct {
	Name string
}

func (err DeniedError) Error() string {
	return fmt.Sprintf("client %q denied by configuration", err.Name)
}

func (DeniedError) Class() Class { return ClassResource }

// RenderError wraps a renderer-side fault.
type RenderError struct {
	Err error
}

func (err RenderError) Error() string {
	return "render: " + err.Err.Error()
}

func (err RenderError) Unwrap() error { return err.Err }

func (RenderError) Class() Class { return ClassRender }

// SystemError wraps a startup fault, such as a transport that could
// not be initialized.
type SystemError struct {
	Err error
}

func (err SystemError) Error() string {
	return "system: " + err.Err.Error()
}

func (err SystemError) Unwrap() error { return err.Err }

func (SystemError) Class() Class { return ClassSystem }

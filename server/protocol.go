package server

// Object id 1 is every client's display object; all other ids are
// allocated by the client.
const DisplayID = 1

// Names the protocol globals are gated on via enabled_protocols.
const (
	ProtocolShell = "shell"
	ProtocolShm   = "shm"
	ProtocolSeat  = "seat"
)

// Display requests.
const (
	displayOpSync uint16 = iota
	displayOpCreateSurface
	displayOpCreatePool
	displayOpGetSeat
	displayOpGetOutput
)

// Display events.
const (
	displayEventError uint16 = iota
)

// Callback events.
const (
	callbackEventDone uint16 = iota
)

// Surface requests.
const (
	surfaceOpDestroy uint16 = iota
	surfaceOpAttach
	surfaceOpDamage
	surfaceOpSetInputRegion
	surfaceOpSetOpaqueRegion
	surfaceOpCommit
	surfaceOpGetToplevel
	surfaceOpGetPopup
)

// Pool requests.
const (
	poolOpDestroy uint16 = iota
	poolOpCreateBuffer
	poolOpResize
)

// Buffer requests and events.
const (
	bufferOpDestroy uint16 = iota
)
const (
	bufferEventRelease uint16 = iota
)

// Shell surface requests and events.
const (
	shellOpDestroy uint16 = iota
	shellOpAckConfigure
	shellOpSetTitle
	shellOpSetMaximized
	shellOpUnsetMaximized
	shellOpSetFullscreen
	shellOpUnsetFullscreen
)
const (
	shellEventConfigure uint16 = iota
)

// Window state flags carried in the configure event.
const (
	stateMaximized uint32 = 1 << iota
	stateFullscreen
	stateActivated
)

// Seat requests and events.
const (
	seatOpRelease uint16 = iota
)
const (
	seatEventPointerEnter uint16 = iota
	seatEventPointerLeave
	seatEventPointerMotion
	seatEventPointerButton
	seatEventKey
)

// Output requests and events.
const (
	outputOpRelease uint16 = iota
)
const (
	outputEventGeometry uint16 = iota
)

// Error codes carried in the display error event.
const (
	errCodeProtocol uint32 = iota
	errCodeState
	errCodeResource
)

package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Queue and transport errors
	ErrEmptyQueue   = fmt.Errorf("queue is empty")
	ErrInvalidIndex = fmt.Errorf("queue index out of range")
	ErrNoTrack      = fmt.Errorf("no current track")
	ErrDecodeFailed = fmt.Errorf("track decode failed")

	// Session and room errors
	ErrConnectionLost   = fmt.Errorf("relay connection lost")
	ErrAlreadyConnected = fmt.Errorf("already in a room")
	ErrNotConnected     = fmt.Errorf("not connected to a room")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrRoomClosed       = fmt.Errorf("room closed by host")
	ErrJoinRejected     = fmt.Errorf("join request rejected")
	ErrJoinCancelled    = fmt.Errorf("join request cancelled")
	ErrProtocolDesync   = fmt.Errorf("protocol sequence desync")

	// Role arbitration errors
	ErrNotHost      = fmt.Errorf("operation requires host role")
	ErrGuestCommand = fmt.Errorf("transport commands are disabled for guests")

	// Input validation errors
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidRoomCode = fmt.Errorf("invalid room code")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

package realtime

import "errors"

var (
	// ErrNotConnected is returned by Emit while no connection is open. Nothing is sent.
	ErrNotConnected = errors.New("realtime: not connected")
	ErrSendTimeout  = errors.New("realtime: send timed out")
	ErrClosed       = errors.New("realtime: manager closed")
	ErrGaveUp       = errors.New("realtime: reconnect attempts exhausted")
)

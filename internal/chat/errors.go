package chat

import "errors"

var (
	// ErrStaleLoad marks a history response that lost to a later peer selection.
	// It is never shown to the user.
	ErrStaleLoad      = errors.New("stale history load discarded")
	ErrNoPeerSelected = errors.New("no peer selected")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrUnknownPeer    = errors.New("unknown peer")
)

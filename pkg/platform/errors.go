package platform

import "errors"

// Sentinel errors for platform operations.
var (
	// ErrClosed is returned when operating on a closed channel or stream.
	ErrClosed = errors.New("platform: channel closed")

	// ErrChannelNotRegistered is returned when native code targets a channel
	// Go never created.
	ErrChannelNotRegistered = errors.New("platform: event channel not registered")
)

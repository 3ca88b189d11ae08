package reactorerrors

import "errors"

var (
	ErrShutdown   = errors.New("reactor is shutting down")
	ErrAtCapacity = errors.New("reactor at max registered I/O resources")
	ErrStale      = errors.New("token no longer matches the slot occupant") // the slot was reused since registration
)

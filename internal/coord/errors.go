package coord

import "errors"

// Error kinds surfaced to the profile layer. All of them except
// ErrInvalidTransition are user-visible (a rejected call, a dropped
// stream); ErrInvalidTransition is logged and swallowed because duplicate
// or out-of-order stack events are expected in the field.
var (
	// ErrCapacityExceeded is returned when a second remote device attempts
	// to register while the single link is occupied.
	ErrCapacityExceeded = errors.New("link capacity exceeded")

	// ErrSlotBusy is returned when a synchronous-connection grant is
	// requested while another grant is outstanding.
	ErrSlotBusy = errors.New("sync slot busy")

	// ErrSinkBusy is returned when the downstream audio sink cannot be
	// claimed for the requested route.
	ErrSinkBusy = errors.New("audio sink busy")

	// ErrInvalidTransition marks an event that is not valid in the current
	// state. The coordinator logs it and leaves the state unchanged.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrQueueFull is returned by Dispatch when the bounded event queue is
	// saturated. The event is dropped, never blocked on.
	ErrQueueFull = errors.New("event queue full")

	// ErrNotRunning is returned when events are dispatched to a stopped
	// coordinator.
	ErrNotRunning = errors.New("coordinator not running")
)

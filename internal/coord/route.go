package coord

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// AudioRoute identifies the source feeding the single downstream output.
// Exactly one value holds at any instant; the output hardware cannot mix.
type AudioRoute int

const (
	RouteNone AudioRoute = iota
	RouteA2dpStream
	RouteHfpCall
)

func (r AudioRoute) String() string {
	switch r {
	case RouteNone:
		return "none"
	case RouteA2dpStream:
		return "a2dp-stream"
	case RouteHfpCall:
		return "hfp-call"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots carry the route as its name.
func (r AudioRoute) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// AudioSink is the external output driver's claim interface. Claim returns
// ErrSinkBusy when the output cannot serve the requested route right now.
type AudioSink interface {
	Claim(route AudioRoute) error
}

// NopAudioSink always claims successfully.
type NopAudioSink struct{}

func (NopAudioSink) Claim(AudioRoute) error { return nil }

// StreamControl pauses and resumes the active device's A2DP stream. The
// coordinator supplies an implementation bound to the registered device;
// the route switch calls it from within SwitchTo so the suspend always
// lands before the route commit.
type StreamControl interface {
	SuspendStream()
	ResumeStream()
}

// RouteSwitch directs the single downstream output between music and call
// audio. Switching into RouteHfpCall over an active stream suspends the
// stream first, so the output never carries mixed or garbled audio, and
// the switch remembers that it caused the suspension: a later switch back
// to RouteA2dpStream resumes the stream only in that case, never one the
// user paused independently.
type RouteSwitch struct {
	mu        sync.Mutex
	current   AudioRoute
	preempted bool
	sink      AudioSink
	streams   StreamControl
	logger    *zerolog.Logger
}

// NewRouteSwitch creates a switch with the route at RouteNone.
func NewRouteSwitch(sink AudioSink, streams StreamControl, logger *zerolog.Logger) *RouteSwitch {
	l := logger.With().Str("component", "route-switch").Logger()
	return &RouteSwitch{
		sink:    sink,
		streams: streams,
		logger:  &l,
	}
}

// Current returns the route the output is on.
func (rs *RouteSwitch) Current() AudioRoute {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.current
}

// StreamPreempted reports whether the switch suspended a stream to make
// way for call audio and has not yet resumed it.
func (rs *RouteSwitch) StreamPreempted() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.preempted
}

// MarkPreempted records a preemption performed on the switch's behalf:
// the coordinator suspends a stream that starts while call audio already
// owns the output, and the switch must later resume it as if it had done
// the suspending itself.
func (rs *RouteSwitch) MarkPreempted() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.preempted = true
}

// ClearPreemption forgets a recorded preemption. Called when the user
// stops the stream themselves mid-call, or when the streaming device goes
// away: in either case resuming after the call would be wrong.
func (rs *RouteSwitch) ClearPreemption() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.preempted = false
}

// SwitchTo moves the output to the given route. Returns ErrSinkBusy when
// the output driver rejects the claim; the caller must not assume the
// route moved. Switching to the current route is a no-op.
func (rs *RouteSwitch) SwitchTo(route AudioRoute) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if route == rs.current {
		return nil
	}

	if err := rs.sink.Claim(route); err != nil {
		rs.logger.Warn().
			Str("from", rs.current.String()).
			Str("to", route.String()).
			Err(err).
			Msg("sink claim rejected")
		return fmt.Errorf("%w: claiming %s", ErrSinkBusy, route)
	}

	if route == RouteHfpCall && rs.current == RouteA2dpStream {
		rs.streams.SuspendStream()
		rs.preempted = true
	}

	if route == RouteA2dpStream && rs.current == RouteHfpCall && rs.preempted {
		rs.streams.ResumeStream()
		rs.preempted = false
	}

	rs.logger.Info().
		Str("from", rs.current.String()).
		Str("to", route.String()).
		Msg("audio route switched")
	rs.current = route
	return nil
}

// Reset forces the route back to RouteNone without touching streams. Used
// on device teardown, when there is nothing left to resume.
func (rs *RouteSwitch) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.current = RouteNone
	rs.preempted = false
}

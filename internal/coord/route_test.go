package coord

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreams struct {
	suspends int
	resumes  int
}

func (f *fakeStreams) SuspendStream() { f.suspends++ }
func (f *fakeStreams) ResumeStream()  { f.resumes++ }

type busySink struct {
	err error
}

func (s busySink) Claim(AudioRoute) error { return s.err }

func newTestRouteSwitch(sink AudioSink) (*RouteSwitch, *fakeStreams) {
	logger := zerolog.Nop()
	streams := &fakeStreams{}
	return NewRouteSwitch(sink, streams, &logger), streams
}

func TestRouteSwitchStartsAtNone(t *testing.T) {
	rs, _ := newTestRouteSwitch(NopAudioSink{})
	assert.Equal(t, RouteNone, rs.Current())
	assert.False(t, rs.StreamPreempted())
}

func TestRouteSwitchCallPreemptsStream(t *testing.T) {
	rs, streams := newTestRouteSwitch(NopAudioSink{})

	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	require.NoError(t, rs.SwitchTo(RouteHfpCall))

	assert.Equal(t, RouteHfpCall, rs.Current())
	assert.Equal(t, 1, streams.suspends, "stream must be suspended before the route commits")
	assert.True(t, rs.StreamPreempted())

	// Back to the stream: the switch resumes what it suspended.
	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	assert.Equal(t, 1, streams.resumes)
	assert.False(t, rs.StreamPreempted())
}

func TestRouteSwitchNoResumeForUserPausedStream(t *testing.T) {
	rs, streams := newTestRouteSwitch(NopAudioSink{})

	// The user stopped the music before the call: entering call audio
	// from RouteNone suspends nothing.
	require.NoError(t, rs.SwitchTo(RouteHfpCall))
	assert.Equal(t, 0, streams.suspends)
	assert.False(t, rs.StreamPreempted())

	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	assert.Equal(t, 0, streams.resumes, "a stream the switch never suspended must not be resumed")
}

func TestRouteSwitchClearPreemption(t *testing.T) {
	rs, streams := newTestRouteSwitch(NopAudioSink{})

	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	require.NoError(t, rs.SwitchTo(RouteHfpCall))
	require.True(t, rs.StreamPreempted())

	// The user stops the music mid-call; forgetting the preemption keeps
	// the later switch from resurrecting it.
	rs.ClearPreemption()
	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	assert.Equal(t, 0, streams.resumes)
}

func TestRouteSwitchSameRouteIsNoop(t *testing.T) {
	rs, streams := newTestRouteSwitch(NopAudioSink{})

	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	assert.Equal(t, RouteA2dpStream, rs.Current())
	assert.Equal(t, 0, streams.suspends)
}

func TestRouteSwitchSinkBusy(t *testing.T) {
	rs, streams := newTestRouteSwitch(busySink{err: errors.New("output driver busy")})

	err := rs.SwitchTo(RouteA2dpStream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSinkBusy))
	assert.Equal(t, RouteNone, rs.Current(), "a rejected switch must not move the route")
	assert.Equal(t, 0, streams.suspends)
}

func TestRouteSwitchReset(t *testing.T) {
	rs, streams := newTestRouteSwitch(NopAudioSink{})

	require.NoError(t, rs.SwitchTo(RouteA2dpStream))
	require.NoError(t, rs.SwitchTo(RouteHfpCall))
	rs.Reset()

	assert.Equal(t, RouteNone, rs.Current())
	assert.False(t, rs.StreamPreempted())
	assert.Equal(t, 0, streams.resumes, "reset tears down, it does not resume")
}

func TestAudioRouteStrings(t *testing.T) {
	tests := []struct {
		route    AudioRoute
		expected string
	}{
		{RouteNone, "none"},
		{RouteA2dpStream, "a2dp-stream"},
		{RouteHfpCall, "hfp-call"},
		{AudioRoute(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.route.String())
	}
}

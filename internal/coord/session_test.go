package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestA2dpStateActive(t *testing.T) {
	assert.False(t, A2dpDisconnected.Active())
	assert.False(t, A2dpConnected.Active())
	assert.True(t, A2dpStreaming.Active())
	assert.True(t, A2dpSuspended.Active())
}

func TestHfpStateCallInProgress(t *testing.T) {
	assert.False(t, HfpDisconnected.CallInProgress())
	assert.False(t, HfpConnected.CallInProgress())
	assert.False(t, HfpCallIncoming.CallInProgress())
	assert.True(t, HfpCallActive.CallInProgress())
	assert.True(t, HfpCallHeld.CallInProgress())
}

func TestRemoteDeviceSessions(t *testing.T) {
	dev := &RemoteDevice{Addr: "AA:BB:CC:DD:EE:FF"}
	assert.False(t, dev.HasSessions())

	dev.A2dp().state = A2dpConnected
	assert.True(t, dev.HasSessions())
	assert.Equal(t, ProfileA2dp, dev.A2dp().Profile())

	dev.A2dp().state = A2dpDisconnected
	dev.Hfp().state = HfpConnected
	assert.True(t, dev.HasSessions())
	assert.Equal(t, ProfileHfp, dev.Hfp().Profile())

	dev.Hfp().state = HfpDisconnected
	assert.False(t, dev.HasSessions())
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateMusicOnly, "music-only"},
		{StateCallOnly, "call-only"},
		{StateCallOverridingMusic, "call-overriding-music"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

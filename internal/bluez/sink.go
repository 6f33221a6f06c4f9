package bluez

import (
	"github.com/godbus/dbus/v5"

	"github.com/ivmarkov/fiat-a2dp/internal/coord"
)

// The Adapter doubles as the coordinator's CommandSink. Every method is
// fire-and-forget: calls go out with no reply expected, and the resulting
// state changes come back as bus signals feeding the event queue.
var _ coord.CommandSink = (*Adapter)(nil)

// RequestSyncGrant is informational at this layer: the controller brings
// up the SCO link itself once call audio is negotiated.
func (a *Adapter) RequestSyncGrant(addr string) {
	a.logger.Debug().Str("address", addr).Msg("sync grant requested")
}

// ReleaseSyncGrant is informational at this layer.
func (a *Adapter) ReleaseSyncGrant(addr string) {
	a.logger.Debug().Str("address", addr).Msg("sync grant released")
}

// SetAudioRoute is informational at this layer: the route is realized by
// the audio server acquiring or releasing the media transport.
func (a *Adapter) SetAudioRoute(route coord.AudioRoute) {
	a.logger.Debug().Str("route", route.String()).Msg("audio route set")
}

func (a *Adapter) SuspendA2dpStream(addr string) {
	a.callPlayer(addr, "Pause")
}

func (a *Adapter) ResumeA2dpStream(addr string) {
	a.callPlayer(addr, "Play")
}

func (a *Adapter) NextTrack(addr string) {
	a.callPlayer(addr, "Next")
}

func (a *Adapter) PreviousTrack(addr string) {
	a.callPlayer(addr, "Previous")
}

func (a *Adapter) AnswerCall(addr string) {
	a.callVoiceCall(addr, "Answer")
}

func (a *Adapter) RejectCall(addr string) {
	a.callVoiceCall(addr, "Hangup")
}

func (a *Adapter) HangupCall(addr string) {
	a.callVoiceCall(addr, "Hangup")
}

func (a *Adapter) callPlayer(addr, method string) {
	a.mu.Lock()
	path, ok := a.players[addr]
	a.mu.Unlock()
	if !ok {
		a.logger.Warn().Str("address", addr).Str("method", method).Msg("no media player for device")
		return
	}

	obj := a.conn.Object(bluezBusName, path)
	obj.Call(playerIface+"."+method, dbus.FlagNoReplyExpected)
	a.logger.Debug().Str("address", addr).Str("method", method).Msg("media player command sent")
}

func (a *Adapter) callVoiceCall(addr, method string) {
	a.mu.Lock()
	var path dbus.ObjectPath
	found := false
	for p, callAddr := range a.calls {
		if callAddr == addr {
			path = p
			found = true
			break
		}
	}
	a.mu.Unlock()
	if !found {
		a.logger.Warn().Str("address", addr).Str("method", method).Msg("no voice call for device")
		return
	}

	obj := a.conn.Object(ofonoBusName, path)
	obj.Call(voiceCallIface+"."+method, dbus.FlagNoReplyExpected)
	a.logger.Debug().Str("address", addr).Str("method", method).Msg("voice call command sent")
}

package coord

import "time"

// EventType enumerates the inbound events the profile stack delivers to
// the coordinator. Connection establishment, SDP and codec work happen in
// the stack; by the time an event arrives here the only question left is
// who gets the sync slot and where the audio output points.
type EventType string

const (
	EventA2dpConnected     EventType = "a2dp-connected"
	EventA2dpStreamStarted EventType = "a2dp-stream-started"
	EventA2dpStreamStopped EventType = "a2dp-stream-stopped"
	EventA2dpDisconnected  EventType = "a2dp-disconnected"

	EventHfpConnected    EventType = "hfp-connected"
	EventHfpCallIncoming EventType = "hfp-call-incoming"
	EventHfpCallActive   EventType = "hfp-call-active"
	EventHfpCallHeld     EventType = "hfp-call-held"
	EventHfpCallEnded    EventType = "hfp-call-ended"
	EventHfpDisconnected EventType = "hfp-disconnected"

	// EventTrackChanged carries AVRCP metadata updates; it never moves the
	// state machine.
	EventTrackChanged EventType = "track-changed"

	// EventPlaybackPosition carries AVRCP playback position updates for
	// the current track. Like EventTrackChanged it never moves the state
	// machine.
	EventPlaybackPosition EventType = "playback-position"

	// EventUserCommand carries a user-initiated control request (answer,
	// hangup, next track, ...) through the same queue as stack events so
	// ordering against them is preserved.
	EventUserCommand EventType = "user-command"
)

// UserCommand is a control request originating from the user rather than
// the remote stack: steering-wheel buttons, or the HTTP surface.
type UserCommand string

const (
	CommandAnswer        UserCommand = "answer"
	CommandReject        UserCommand = "reject"
	CommandHangup        UserCommand = "hangup"
	CommandPause         UserCommand = "pause"
	CommandResume        UserCommand = "resume"
	CommandNextTrack     UserCommand = "next-track"
	CommandPreviousTrack UserCommand = "previous-track"
)

// Event is one inbound notification from the profile stack or the user.
type Event struct {
	Type EventType

	// Addr is the remote device's Bluetooth address. Empty for user
	// commands, which always target the active device.
	Addr string

	// Number is the remote party for call events.
	Number string

	// Track is set on EventTrackChanged.
	Track *TrackInfo

	// Position is set on EventPlaybackPosition.
	Position time.Duration

	// Command is set on EventUserCommand.
	Command UserCommand
}

// CommandSink receives the coordinator's outbound commands. Every call is
// fire-and-forget: implementations must not block, and completions come
// back through the event queue as new events. The production sink talks to
// the Bluetooth stack; tests record the command sequence.
type CommandSink interface {
	// RequestSyncGrant informs the controller layer that the given device
	// is about to bring up its SCO/eSCO link.
	RequestSyncGrant(addr string)

	// ReleaseSyncGrant informs the controller layer that the SCO/eSCO link
	// for the given device is being torn down.
	ReleaseSyncGrant(addr string)

	// SetAudioRoute points the single downstream output at the given
	// source.
	SetAudioRoute(route AudioRoute)

	// SuspendA2dpStream asks the remote source to suspend streaming.
	SuspendA2dpStream(addr string)

	// ResumeA2dpStream asks the remote source to resume a suspended
	// stream.
	ResumeA2dpStream(addr string)

	// AnswerCall, RejectCall and HangupCall drive the HFP call control
	// channel.
	AnswerCall(addr string)
	RejectCall(addr string)
	HangupCall(addr string)

	// NextTrack and PreviousTrack drive AVRCP passthrough.
	NextTrack(addr string)
	PreviousTrack(addr string)
}

// NopCommandSink discards every command. Useful as a default until the
// stack adapter is wired in.
type NopCommandSink struct{}

func (NopCommandSink) RequestSyncGrant(string)  {}
func (NopCommandSink) ReleaseSyncGrant(string)  {}
func (NopCommandSink) SetAudioRoute(AudioRoute) {}
func (NopCommandSink) SuspendA2dpStream(string) {}
func (NopCommandSink) ResumeA2dpStream(string)  {}
func (NopCommandSink) AnswerCall(string)        {}
func (NopCommandSink) RejectCall(string)        {}
func (NopCommandSink) HangupCall(string)        {}
func (NopCommandSink) NextTrack(string)         {}
func (NopCommandSink) PreviousTrack(string)     {}

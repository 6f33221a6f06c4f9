package coord

import "time"

// Profile identifies one of the two Bluetooth Classic audio profiles a
// remote device may connect.
type Profile int

const (
	ProfileA2dp Profile = iota
	ProfileHfp
)

func (p Profile) String() string {
	switch p {
	case ProfileA2dp:
		return "a2dp"
	case ProfileHfp:
		return "hfp"
	default:
		return "unknown"
	}
}

// A2dpState is the streaming profile's session state.
type A2dpState int

const (
	A2dpDisconnected A2dpState = iota
	A2dpConnected
	A2dpStreaming
	A2dpSuspended
)

func (s A2dpState) String() string {
	switch s {
	case A2dpDisconnected:
		return "disconnected"
	case A2dpConnected:
		return "connected"
	case A2dpStreaming:
		return "streaming"
	case A2dpSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Active reports whether the session is producing or about to resume
// producing audio.
func (s A2dpState) Active() bool {
	return s == A2dpStreaming || s == A2dpSuspended
}

// HfpState is the hands-free profile's session state.
type HfpState int

const (
	HfpDisconnected HfpState = iota
	HfpConnected
	HfpCallIncoming
	HfpCallActive
	HfpCallHeld
)

func (s HfpState) String() string {
	switch s {
	case HfpDisconnected:
		return "disconnected"
	case HfpConnected:
		return "connected"
	case HfpCallIncoming:
		return "call-incoming"
	case HfpCallActive:
		return "call-active"
	case HfpCallHeld:
		return "call-held"
	default:
		return "unknown"
	}
}

// CallInProgress reports whether a call owns or is entitled to the sync
// slot. A held call keeps the slot: releasing it would drop the SCO link
// the held call resumes onto.
func (s HfpState) CallInProgress() bool {
	return s == HfpCallActive || s == HfpCallHeld
}

// TrackInfo is AVRCP metadata for the currently loaded track.
type TrackInfo struct {
	Artist   string        `json:"artist"`
	Album    string        `json:"album"`
	Title    string        `json:"title"`
	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
}

// CallInfo describes the current or ringing call on the HFP session.
type CallInfo struct {
	Number  string    `json:"number"`
	Started time.Time `json:"started,omitempty"`
}

// SessionRef is the registry's profile-agnostic view of a session.
type SessionRef interface {
	Profile() Profile
	Connected() bool
}

// A2dpSession tracks the music stream from the remote device. It is
// created on the profile connect event and destroyed on disconnect, and is
// mutated only from the coordinator's event loop.
type A2dpSession struct {
	state A2dpState
	track TrackInfo
}

func (s *A2dpSession) Profile() Profile { return ProfileA2dp }
func (s *A2dpSession) Connected() bool  { return s.state != A2dpDisconnected }
func (s *A2dpSession) State() A2dpState { return s.state }
func (s *A2dpSession) Track() TrackInfo { return s.track }

// HfpSession tracks the phone-call side of the remote device. It owns the
// synchronous-connection grant while one is held.
type HfpSession struct {
	state     HfpState
	call      CallInfo
	grantHeld bool
}

func (s *HfpSession) Profile() Profile { return ProfileHfp }
func (s *HfpSession) Connected() bool  { return s.state != HfpDisconnected }
func (s *HfpSession) State() HfpState  { return s.state }
func (s *HfpSession) Call() CallInfo   { return s.call }

// HoldsGrant reports whether this session currently owns the sync slot.
func (s *HfpSession) HoldsGrant() bool { return s.grantHeld }

// RemoteDevice is one registered peer and its two profile sessions.
type RemoteDevice struct {
	Addr   string
	Handle DeviceHandle

	a2dp *A2dpSession
	hfp  *HfpSession
}

// A2dp returns the device's A2DP session, creating it on first use.
func (d *RemoteDevice) A2dp() *A2dpSession {
	if d.a2dp == nil {
		d.a2dp = &A2dpSession{}
	}
	return d.a2dp
}

// Hfp returns the device's HFP session, creating it on first use.
func (d *RemoteDevice) Hfp() *HfpSession {
	if d.hfp == nil {
		d.hfp = &HfpSession{}
	}
	return d.hfp
}

// HasSessions reports whether either profile is still connected. A device
// with neither profile up is removed from the registry.
func (d *RemoteDevice) HasSessions() bool {
	if d.a2dp != nil && d.a2dp.Connected() {
		return true
	}
	if d.hfp != nil && d.hfp.Connected() {
		return true
	}
	return false
}

package coord

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the coordinator's top-level state, a function of which profile
// currently owns the downstream audio output.
type State int

const (
	StateIdle State = iota
	StateMusicOnly
	StateCallOnly
	StateCallOverridingMusic
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMusicOnly:
		return "music-only"
	case StateCallOnly:
		return "call-only"
	case StateCallOverridingMusic:
		return "call-overriding-music"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots carry the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeviceSnapshot is the per-device slice of a Snapshot.
type DeviceSnapshot struct {
	Addr  string     `json:"address"`
	A2dp  string     `json:"a2dp"`
	Hfp   string     `json:"hfp"`
	Track *TrackInfo `json:"track,omitempty"`
	Call  *CallInfo  `json:"call,omitempty"`
}

// Snapshot is a self-contained view of the coordinator, published to
// subscribers after every accepted transition.
type Snapshot struct {
	State         State           `json:"state"`
	Route         AudioRoute      `json:"route"`
	SyncGrantHeld bool            `json:"sync_grant_held"`
	Device        *DeviceSnapshot `json:"device,omitempty"`
}

// Coordinator consumes connection, streaming and call events from the two
// profile handlers and drives the sync-slot arbiter and the audio route
// switch. All events pass through one bounded FIFO queue with a single
// consumer goroutine: no two transitions ever run concurrently, every
// transition is a total function of (current state, event), and the grant
// and route are only ever touched from that goroutine.
type Coordinator struct {
	registry *LinkRegistry
	arbiter  *SyncSlotArbiter
	route    *RouteSwitch
	sink     CommandSink
	logger   *zerolog.Logger

	running atomic.Bool
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}

	// state is owned by the consumer goroutine.
	state State

	snapMu   sync.RWMutex
	snapshot Snapshot
	notify   func(Snapshot)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotify installs a hook invoked with a fresh snapshot after every
// accepted transition. The hook runs on the consumer goroutine and must
// not block.
func WithNotify(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// New creates a coordinator with explicitly injected collaborators. There
// is no package-level instance; callers construct and own exactly one.
func New(registry *LinkRegistry, arbiter *SyncSlotArbiter, route *RouteSwitch, sink CommandSink, logger *zerolog.Logger, opts ...Option) *Coordinator {
	l := logger.With().Str("component", "session-coordinator").Logger()
	c := &Coordinator{
		registry: registry,
		arbiter:  arbiter,
		route:    route,
		sink:     sink,
		logger:   &l,
	}
	for _, opt := range opts {
		opt(c)
	}
	registry.SetLifecycleCallback(func(registered bool, dev *RemoteDevice) {
		metricsRegisteredDevices.Set(float64(registry.Count()))
	})
	return c
}

// stackStreamControl is the RouteSwitch's view of the active device's
// stream, bound through the registry so the switch never needs to know
// which device is playing.
type stackStreamControl struct {
	registry *LinkRegistry
	sink     CommandSink
}

// NewStackStreamControl returns a StreamControl that issues suspend and
// resume commands against the registered device.
func NewStackStreamControl(registry *LinkRegistry, sink CommandSink) StreamControl {
	return &stackStreamControl{registry: registry, sink: sink}
}

func (s *stackStreamControl) SuspendStream() {
	if dev, ok := s.registry.Active(); ok {
		s.sink.SuspendA2dpStream(dev.Addr)
	}
}

func (s *stackStreamControl) ResumeStream() {
	if dev, ok := s.registry.Active(); ok {
		s.sink.ResumeA2dpStream(dev.Addr)
	}
}

// Start launches the event consumer. Safe to call again after Stop.
func (c *Coordinator) Start() error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}

	c.events = make(chan Event, GetConfig().EventQueueCapacity)
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.loop()

	c.logger.Info().Msg("coordinator started")
	return nil
}

// Stop halts the consumer after the event it is processing, discarding
// anything still queued.
func (c *Coordinator) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.logger.Info().Msg("coordinator stopped")
}

// Dispatch enqueues an event without blocking. When the queue is
// saturated the event is dropped and ErrQueueFull returned; the profile
// stack's callback context must never be stalled on the coordinator.
func (c *Coordinator) Dispatch(ev Event) error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	select {
	case c.events <- ev:
		metricsEventQueueDepth.Set(float64(len(c.events)))
		return nil
	default:
		metricsEventsDroppedTotal.Inc()
		c.logger.Error().Str("event", string(ev.Type)).Msg("event queue full, dropping event")
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, ev.Type)
	}
}

// SubmitCommand enqueues a user command behind any stack events already
// queued.
func (c *Coordinator) SubmitCommand(cmd UserCommand) error {
	return c.Dispatch(Event{Type: EventUserCommand, Command: cmd})
}

// State returns the last published top-level state.
func (c *Coordinator) State() State {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot.State
}

// Snapshot returns the last published snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

func (c *Coordinator) loop() {
	defer close(c.doneCh)

	c.publishSnapshot()

	for {
		select {
		case <-c.stopCh:
			return
		case ev := <-c.events:
			metricsEventQueueDepth.Set(float64(len(c.events)))
			c.handleEvent(ev)
		}
	}
}

// handleEvent is the single place coordinator state changes. It runs only
// on the consumer goroutine.
func (c *Coordinator) handleEvent(ev Event) {
	metricsEventsProcessedTotal.WithLabelValues(string(ev.Type)).Inc()

	var err error
	switch ev.Type {
	case EventA2dpConnected:
		err = c.onA2dpConnected(ev)
	case EventA2dpStreamStarted:
		err = c.onA2dpStreamStarted(ev)
	case EventA2dpStreamStopped:
		err = c.onA2dpStreamStopped(ev)
	case EventA2dpDisconnected:
		err = c.onA2dpDisconnected(ev)
	case EventHfpConnected:
		err = c.onHfpConnected(ev)
	case EventHfpCallIncoming:
		err = c.onHfpCallIncoming(ev)
	case EventHfpCallActive:
		err = c.onHfpCallActive(ev)
	case EventHfpCallHeld:
		err = c.onHfpCallHeld(ev)
	case EventHfpCallEnded:
		err = c.onHfpCallEnded(ev)
	case EventHfpDisconnected:
		err = c.onHfpDisconnected(ev)
	case EventTrackChanged:
		err = c.onTrackChanged(ev)
	case EventPlaybackPosition:
		err = c.onPlaybackPosition(ev)
	case EventUserCommand:
		err = c.onUserCommand(ev)
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev.Type)
	}

	if err != nil {
		// Duplicate and out-of-order stack events are a fact of life;
		// anything else is surfaced as a rejection of the triggering
		// operation, never retried.
		if errors.Is(err, ErrInvalidTransition) {
			metricsInvalidTransitionsTotal.Inc()
			c.logger.Debug().
				Str("event", string(ev.Type)).
				Str("state", c.state.String()).
				Err(err).
				Msg("event ignored")
		} else {
			c.logger.Warn().
				Str("event", string(ev.Type)).
				Str("state", c.state.String()).
				Err(err).
				Msg("event rejected")
		}
		return
	}

	c.publishSnapshot()
}

func (c *Coordinator) onA2dpConnected(ev Event) error {
	dev, err := c.registry.Register(ev.Addr)
	if err != nil {
		return err
	}
	dev.A2dp().state = A2dpConnected
	return nil
}

func (c *Coordinator) onA2dpStreamStarted(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || !dev.A2dp().Connected() {
		return fmt.Errorf("%w: stream start without a2dp connection", ErrInvalidTransition)
	}

	switch c.state {
	case StateIdle:
		if err := c.route.SwitchTo(RouteA2dpStream); err != nil {
			metricsRouteRejectionsTotal.Inc()
			return err
		}
		c.sink.SetAudioRoute(RouteA2dpStream)
		metricsRouteSwitchesTotal.WithLabelValues(RouteA2dpStream.String()).Inc()
		dev.A2dp().state = A2dpStreaming
		c.setState(StateMusicOnly)
		return nil

	case StateCallOnly:
		// Call audio owns the output. The stream is suspended right away
		// and remembered, so it resumes when the call ends.
		dev.A2dp().state = A2dpSuspended
		c.sink.SuspendA2dpStream(dev.Addr)
		c.route.MarkPreempted()
		c.setState(StateCallOverridingMusic)
		return nil

	default:
		return fmt.Errorf("%w: stream already accounted for in %s", ErrInvalidTransition, c.state)
	}
}

func (c *Coordinator) onA2dpStreamStopped(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || !dev.A2dp().State().Active() {
		return fmt.Errorf("%w: stream stop without active stream", ErrInvalidTransition)
	}

	switch c.state {
	case StateMusicOnly:
		if err := c.route.SwitchTo(RouteNone); err != nil {
			metricsRouteRejectionsTotal.Inc()
			return err
		}
		c.sink.SetAudioRoute(RouteNone)
		metricsRouteSwitchesTotal.WithLabelValues(RouteNone.String()).Inc()
		dev.A2dp().state = A2dpConnected
		c.setState(StateIdle)
		return nil

	case StateCallOverridingMusic:
		// The user stopped the music mid-call. Forget the preemption so
		// the end of the call does not resurrect a stream the user chose
		// to stop.
		c.route.ClearPreemption()
		dev.A2dp().state = A2dpConnected
		c.setState(StateCallOnly)
		return nil

	default:
		return fmt.Errorf("%w: stream stop in %s", ErrInvalidTransition, c.state)
	}
}

func (c *Coordinator) onA2dpDisconnected(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.a2dp == nil {
		return fmt.Errorf("%w: a2dp disconnect for unknown device", ErrInvalidTransition)
	}

	switch c.state {
	case StateMusicOnly:
		if err := c.route.SwitchTo(RouteNone); err == nil {
			c.sink.SetAudioRoute(RouteNone)
			metricsRouteSwitchesTotal.WithLabelValues(RouteNone.String()).Inc()
		} else {
			// The source is gone regardless of what the sink thinks; the
			// route must not stay pointed at a dead stream.
			metricsRouteRejectionsTotal.Inc()
			c.route.Reset()
		}
		c.setState(StateIdle)
	case StateCallOverridingMusic:
		c.route.ClearPreemption()
		c.setState(StateCallOnly)
	}

	dev.a2dp.state = A2dpDisconnected
	dev.a2dp.track = TrackInfo{}
	c.removeIfOrphaned(dev)
	return nil
}

func (c *Coordinator) onHfpConnected(ev Event) error {
	dev, err := c.registry.Register(ev.Addr)
	if err != nil {
		return err
	}
	dev.Hfp().state = HfpConnected
	return nil
}

func (c *Coordinator) onHfpCallIncoming(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || !dev.Hfp().Connected() {
		return fmt.Errorf("%w: ring without hfp connection", ErrInvalidTransition)
	}

	hfp := dev.Hfp()
	if hfp.State().CallInProgress() {
		// Call waiting. The controller cannot carry a second SCO link, so
		// the second call is rejected upstream rather than queued.
		if GetConfig().RejectSecondIncomingCall {
			c.sink.RejectCall(dev.Addr)
		}
		return fmt.Errorf("%w: call waiting rejected", ErrSlotBusy)
	}

	hfp.state = HfpCallIncoming
	hfp.call = CallInfo{Number: ev.Number}
	// Ringing alone does not move the route; the output switches when
	// call audio actually comes up.
	return nil
}

func (c *Coordinator) onHfpCallActive(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || !dev.Hfp().Connected() {
		return fmt.Errorf("%w: call active without hfp connection", ErrInvalidTransition)
	}

	hfp := dev.Hfp()

	// A held call resuming does not renegotiate the slot; it never let
	// go of it.
	if hfp.State() == HfpCallHeld && hfp.HoldsGrant() {
		hfp.state = HfpCallActive
		return nil
	}

	res := c.arbiter.RequestGrant(dev.Addr)
	if !res.Granted {
		metricsSyncGrantDenialsTotal.Inc()
		return fmt.Errorf("%w: call audio rejected", res.Reason)
	}
	metricsSyncGrantsTotal.Inc()
	c.sink.RequestSyncGrant(dev.Addr)

	if err := c.route.SwitchTo(RouteHfpCall); err != nil {
		metricsRouteRejectionsTotal.Inc()
		c.arbiter.Release(dev.Addr)
		c.sink.ReleaseSyncGrant(dev.Addr)
		return err
	}
	c.sink.SetAudioRoute(RouteHfpCall)
	metricsRouteSwitchesTotal.WithLabelValues(RouteHfpCall.String()).Inc()

	if c.route.StreamPreempted() && dev.a2dp != nil && dev.a2dp.State() == A2dpStreaming {
		dev.a2dp.state = A2dpSuspended
	}

	hfp.grantHeld = true
	hfp.state = HfpCallActive
	if hfp.call.Number == "" {
		hfp.call.Number = ev.Number
	}
	hfp.call.Started = time.Now()

	if c.route.StreamPreempted() {
		c.setState(StateCallOverridingMusic)
	} else {
		c.setState(StateCallOnly)
	}
	return nil
}

func (c *Coordinator) onHfpCallHeld(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.Hfp().State() != HfpCallActive {
		return fmt.Errorf("%w: hold without active call", ErrInvalidTransition)
	}
	// The slot stays held: releasing it would drop the SCO link the held
	// call resumes onto.
	dev.Hfp().state = HfpCallHeld
	return nil
}

func (c *Coordinator) onHfpCallEnded(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.hfp == nil {
		return fmt.Errorf("%w: call end for unknown device", ErrInvalidTransition)
	}

	hfp := dev.hfp
	switch hfp.State() {
	case HfpCallIncoming:
		// The caller hung up before the call was answered. No grant or
		// route was ever involved.
		hfp.state = HfpConnected
		hfp.call = CallInfo{}
		return nil
	case HfpCallActive, HfpCallHeld:
	default:
		return fmt.Errorf("%w: call end without call", ErrInvalidTransition)
	}

	c.arbiter.Release(dev.Addr)
	c.sink.ReleaseSyncGrant(dev.Addr)
	hfp.grantHeld = false
	hfp.state = HfpConnected
	hfp.call = CallInfo{}

	c.restoreAudioAfterCall(dev)
	return nil
}

func (c *Coordinator) onHfpDisconnected(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.hfp == nil {
		return fmt.Errorf("%w: hfp disconnect for unknown device", ErrInvalidTransition)
	}

	hfp := dev.hfp
	if hfp.HoldsGrant() {
		c.arbiter.Release(dev.Addr)
		c.sink.ReleaseSyncGrant(dev.Addr)
		hfp.grantHeld = false
	}
	if c.state == StateCallOnly || c.state == StateCallOverridingMusic {
		c.restoreAudioAfterCall(dev)
	}

	hfp.state = HfpDisconnected
	hfp.call = CallInfo{}
	c.removeIfOrphaned(dev)
	return nil
}

// restoreAudioAfterCall moves the output off call audio: back to the
// stream this switch suspended, if any, otherwise to silence.
func (c *Coordinator) restoreAudioAfterCall(dev *RemoteDevice) {
	if c.state == StateCallOverridingMusic && c.route.StreamPreempted() {
		if err := c.route.SwitchTo(RouteA2dpStream); err != nil {
			metricsRouteRejectionsTotal.Inc()
			c.logger.Warn().Err(err).Msg("could not restore stream after call, muting output")
			c.route.ClearPreemption()
			if c.route.SwitchTo(RouteNone) == nil {
				c.sink.SetAudioRoute(RouteNone)
			}
			c.setState(StateIdle)
			return
		}
		c.sink.SetAudioRoute(RouteA2dpStream)
		metricsRouteSwitchesTotal.WithLabelValues(RouteA2dpStream.String()).Inc()
		if dev.a2dp != nil && dev.a2dp.State() == A2dpSuspended {
			dev.a2dp.state = A2dpStreaming
		}
		c.setState(StateMusicOnly)
		return
	}

	if err := c.route.SwitchTo(RouteNone); err == nil {
		c.sink.SetAudioRoute(RouteNone)
		metricsRouteSwitchesTotal.WithLabelValues(RouteNone.String()).Inc()
	}
	c.setState(StateIdle)
}

func (c *Coordinator) onTrackChanged(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.a2dp == nil || ev.Track == nil {
		return fmt.Errorf("%w: track update without a2dp session", ErrInvalidTransition)
	}
	dev.a2dp.track = *ev.Track
	return nil
}

func (c *Coordinator) onPlaybackPosition(ev Event) error {
	dev, ok := c.registry.Lookup(ev.Addr)
	if !ok || dev.a2dp == nil {
		return fmt.Errorf("%w: position update without a2dp session", ErrInvalidTransition)
	}
	dev.a2dp.track.Offset = ev.Position
	return nil
}

func (c *Coordinator) onUserCommand(ev Event) error {
	dev, ok := c.registry.Active()
	if !ok {
		return fmt.Errorf("%w: no device for command %q", ErrInvalidTransition, ev.Command)
	}

	switch ev.Command {
	case CommandAnswer:
		if dev.hfp == nil || dev.hfp.State() != HfpCallIncoming {
			return fmt.Errorf("%w: answer without ringing call", ErrInvalidTransition)
		}
		c.sink.AnswerCall(dev.Addr)
	case CommandReject:
		if dev.hfp == nil || dev.hfp.State() != HfpCallIncoming {
			return fmt.Errorf("%w: reject without ringing call", ErrInvalidTransition)
		}
		c.sink.RejectCall(dev.Addr)
	case CommandHangup:
		if dev.hfp == nil || !dev.hfp.State().CallInProgress() {
			return fmt.Errorf("%w: hangup without call", ErrInvalidTransition)
		}
		c.sink.HangupCall(dev.Addr)
	case CommandPause:
		if dev.a2dp == nil || dev.a2dp.State() != A2dpStreaming {
			return fmt.Errorf("%w: pause without stream", ErrInvalidTransition)
		}
		c.sink.SuspendA2dpStream(dev.Addr)
	case CommandResume:
		if c.state == StateCallOnly || c.state == StateCallOverridingMusic {
			return fmt.Errorf("%w: resume during call", ErrInvalidTransition)
		}
		if dev.a2dp == nil || !dev.a2dp.Connected() {
			return fmt.Errorf("%w: resume without a2dp connection", ErrInvalidTransition)
		}
		c.sink.ResumeA2dpStream(dev.Addr)
	case CommandNextTrack:
		if dev.a2dp == nil || !dev.a2dp.Connected() {
			return fmt.Errorf("%w: track control without a2dp connection", ErrInvalidTransition)
		}
		c.sink.NextTrack(dev.Addr)
	case CommandPreviousTrack:
		if dev.a2dp == nil || !dev.a2dp.Connected() {
			return fmt.Errorf("%w: track control without a2dp connection", ErrInvalidTransition)
		}
		c.sink.PreviousTrack(dev.Addr)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidTransition, ev.Command)
	}
	return nil
}

// removeIfOrphaned drops the device when neither profile remains, and
// resets everything the device was holding.
func (c *Coordinator) removeIfOrphaned(dev *RemoteDevice) {
	if dev.HasSessions() {
		return
	}
	c.registry.Remove(dev.Handle)
	c.arbiter.Reset()
	c.route.Reset()
	c.setState(StateIdle)
}

func (c *Coordinator) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Info().Str("from", c.state.String()).Str("to", s.String()).Msg("state changed")
	c.state = s
	metricsCoordinatorState.Set(float64(s))
}

func (c *Coordinator) publishSnapshot() {
	snap := Snapshot{
		State:         c.state,
		Route:         c.route.Current(),
		SyncGrantHeld: c.arbiter.Held(),
	}
	if dev, ok := c.registry.Active(); ok {
		ds := &DeviceSnapshot{Addr: dev.Addr, A2dp: A2dpDisconnected.String(), Hfp: HfpDisconnected.String()}
		if dev.a2dp != nil {
			ds.A2dp = dev.a2dp.State().String()
			if dev.a2dp.track != (TrackInfo{}) {
				track := dev.a2dp.track
				ds.Track = &track
			}
		}
		if dev.hfp != nil {
			ds.Hfp = dev.hfp.State().String()
			if dev.hfp.call.Number != "" {
				call := dev.hfp.call
				ds.Call = &call
			}
		}
		snap.Device = ds
	}

	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	if c.notify != nil {
		c.notify(snap)
	}
}

package bluez

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/ivmarkov/fiat-a2dp/internal/coord"
)

// Adapter bridges the system bus and the coordinator. Signal handling is
// fire-and-forget both ways: bus signals become Dispatch calls that never
// block, and outbound commands are sent with no reply expected so the
// coordinator's consumer goroutine is never stalled on D-Bus.
type Adapter struct {
	conn   *dbus.Conn
	coord  *coord.Coordinator
	logger *zerolog.Logger

	signals chan *dbus.Signal
	done    chan struct{}

	mu      sync.Mutex
	players map[string]dbus.ObjectPath // device address -> MediaPlayer1 path
	calls   map[dbus.ObjectPath]string // VoiceCall path -> device address
}

// New connects to the system bus and verifies BlueZ is present. The
// coordinator is bound later, at Start: the adapter is also the
// coordinator's command sink, so it has to exist first.
func New(logger *zerolog.Logger) (*Adapter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == bluezBusName {
			found = true
			break
		}
	}
	if !found {
		_ = conn.Close()
		return nil, fmt.Errorf("%s not found on system bus, is bluetooth.service running", bluezBusName)
	}

	l := logger.With().Str("component", "bluez-adapter").Logger()
	return &Adapter{
		conn:    conn,
		logger:  &l,
		players: make(map[string]dbus.ObjectPath),
		calls:   make(map[dbus.ObjectPath]string),
	}, nil
}

// Start binds the coordinator, subscribes to the relevant signals and
// launches the dispatch loop.
func (a *Adapter) Start(coordinator *coord.Coordinator) error {
	a.coord = coordinator
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(propsIface), dbus.WithMatchMember(propsChangedMember)},
		{dbus.WithMatchInterface(objectManagerFace), dbus.WithMatchMember(interfacesAddedMember)},
		{dbus.WithMatchInterface(objectManagerFace), dbus.WithMatchMember(interfacesRemovedMember)},
		{dbus.WithMatchInterface(voiceCallManagerIface)},
		{dbus.WithMatchInterface(voiceCallIface), dbus.WithMatchMember(propertyChangedMember)},
	}
	for _, m := range matches {
		if err := a.conn.AddMatchSignal(m...); err != nil {
			return fmt.Errorf("add signal match: %w", err)
		}
	}

	a.signals = make(chan *dbus.Signal, 32)
	a.done = make(chan struct{})
	a.conn.Signal(a.signals)

	go a.loop()

	a.logger.Info().Msg("bluez adapter started")
	return nil
}

// Stop detaches from the bus and waits for the dispatch loop to drain.
func (a *Adapter) Stop() {
	a.conn.RemoveSignal(a.signals)
	close(a.signals)
	<-a.done
	_ = a.conn.Close()
	a.logger.Info().Msg("bluez adapter stopped")
}

func (a *Adapter) loop() {
	defer close(a.done)
	for sig := range a.signals {
		a.handleSignal(sig)
	}
}

func (a *Adapter) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propsIface + "." + propsChangedMember:
		a.handlePropertiesChanged(sig)
	case objectManagerFace + "." + interfacesAddedMember:
		a.handleInterfacesAdded(sig)
	case objectManagerFace + "." + interfacesRemovedMember:
		a.handleInterfacesRemoved(sig)
	case voiceCallManagerIface + "." + callAddedMember:
		a.handleCallAdded(sig)
	case voiceCallManagerIface + "." + callRemovedMember:
		a.handleCallRemoved(sig)
	case voiceCallIface + "." + propertyChangedMember:
		a.handleCallPropertyChanged(sig)
	}
}

func (a *Adapter) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	addr := addrFromPath(path)
	if addr == "" {
		return
	}

	if _, ok := ifaces[transportIface]; ok {
		a.dispatch(coord.Event{Type: coord.EventA2dpConnected, Addr: addr})
	}
	if _, ok := ifaces[playerIface]; ok {
		a.mu.Lock()
		a.players[addr] = path
		a.mu.Unlock()
	}
	if props, ok := ifaces[deviceIface]; ok {
		if variantBool(props["Connected"]) && hasUUID(props, hfpUUID) {
			a.dispatch(coord.Event{Type: coord.EventHfpConnected, Addr: addr})
		}
	}
}

func (a *Adapter) handleInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].([]string)
	if !ok {
		return
	}
	addr := addrFromPath(path)
	if addr == "" {
		return
	}

	for _, iface := range ifaces {
		switch iface {
		case transportIface:
			a.dispatch(coord.Event{Type: coord.EventA2dpDisconnected, Addr: addr})
		case playerIface:
			a.mu.Lock()
			delete(a.players, addr)
			a.mu.Unlock()
		}
	}
}

func (a *Adapter) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	addr := addrFromPath(sig.Path)
	if addr == "" {
		return
	}

	switch iface {
	case transportIface:
		if v, ok := changed["State"]; ok {
			switch variantString(v) {
			case "active", "pending":
				a.dispatch(coord.Event{Type: coord.EventA2dpStreamStarted, Addr: addr})
			case "idle":
				a.dispatch(coord.Event{Type: coord.EventA2dpStreamStopped, Addr: addr})
			}
		}
	case playerIface:
		if v, ok := changed["Track"]; ok {
			if track := trackFromVariant(v); track != nil {
				a.dispatch(coord.Event{Type: coord.EventTrackChanged, Addr: addr, Track: track})
			}
		}
		if v, ok := changed["Position"]; ok {
			if pos, ok := positionFromVariant(v); ok {
				a.dispatch(coord.Event{Type: coord.EventPlaybackPosition, Addr: addr, Position: pos})
			}
		}
	case deviceIface:
		if v, ok := changed["Connected"]; ok && !variantBool(v) {
			// The ACL dropped: both profiles are gone regardless of what
			// per-profile signals still arrive.
			a.dispatch(coord.Event{Type: coord.EventA2dpDisconnected, Addr: addr})
			a.dispatch(coord.Event{Type: coord.EventHfpDisconnected, Addr: addr})
		}
	}
}

func (a *Adapter) handleCallAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	callPath, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	props, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	addr := addrFromPath(sig.Path)
	if addr == "" {
		return
	}

	a.mu.Lock()
	a.calls[callPath] = addr
	a.mu.Unlock()

	number := variantString(props["LineIdentification"])
	switch variantString(props["State"]) {
	case "incoming":
		a.dispatch(coord.Event{Type: coord.EventHfpCallIncoming, Addr: addr, Number: number})
	case "active":
		a.dispatch(coord.Event{Type: coord.EventHfpCallActive, Addr: addr, Number: number})
	}
}

func (a *Adapter) handleCallRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	callPath, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}

	a.mu.Lock()
	addr, known := a.calls[callPath]
	delete(a.calls, callPath)
	a.mu.Unlock()

	if known {
		a.dispatch(coord.Event{Type: coord.EventHfpCallEnded, Addr: addr})
	}
}

func (a *Adapter) handleCallPropertyChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	name, ok := sig.Body[0].(string)
	if !ok || name != "State" {
		return
	}
	v, ok := sig.Body[1].(dbus.Variant)
	if !ok {
		return
	}

	a.mu.Lock()
	addr, known := a.calls[sig.Path]
	a.mu.Unlock()
	if !known {
		addr = addrFromPath(sig.Path)
	}
	if addr == "" {
		return
	}

	switch variantString(v) {
	case "active":
		a.dispatch(coord.Event{Type: coord.EventHfpCallActive, Addr: addr})
	case "held":
		a.dispatch(coord.Event{Type: coord.EventHfpCallHeld, Addr: addr})
	case "disconnected":
		a.dispatch(coord.Event{Type: coord.EventHfpCallEnded, Addr: addr})
	}
}

func trackFromVariant(v dbus.Variant) *coord.TrackInfo {
	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	track := &coord.TrackInfo{
		Artist: variantString(m["Artist"]),
		Album:  variantString(m["Album"]),
		Title:  variantString(m["Title"]),
	}
	if d, ok := m["Duration"]; ok {
		if ms, ok := d.Value().(uint32); ok {
			track.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	return track
}

// positionFromVariant decodes the MediaPlayer1 Position property, a
// millisecond count into the current track.
func positionFromVariant(v dbus.Variant) (time.Duration, bool) {
	ms, ok := v.Value().(uint32)
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func (a *Adapter) dispatch(ev coord.Event) {
	if err := a.coord.Dispatch(ev); err != nil {
		a.logger.Warn().Str("event", string(ev.Type)).Err(err).Msg("event not dispatched")
	}
}

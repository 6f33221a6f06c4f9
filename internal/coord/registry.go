package coord

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeviceHandle identifies a registered device for the lifetime of its
// registration.
type DeviceHandle string

// LinkRegistry tracks the remote devices with profile connections up. The
// controller supports one synchronous connection, so this class of
// accessory is single-peer by design: a second device is rejected with
// ErrCapacityExceeded while the link is occupied.
type LinkRegistry struct {
	mu       sync.RWMutex
	devices  map[DeviceHandle]*RemoteDevice
	byAddr   map[string]DeviceHandle
	logger   *zerolog.Logger
	onChange func(registered bool, dev *RemoteDevice)
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry(logger *zerolog.Logger) *LinkRegistry {
	l := logger.With().Str("component", "link-registry").Logger()
	return &LinkRegistry{
		devices: make(map[DeviceHandle]*RemoteDevice),
		byAddr:  make(map[string]DeviceHandle),
		logger:  &l,
	}
}

// SetLifecycleCallback installs the coordinator's lifecycle notification
// hook. The callback fires after a device is registered or removed.
func (r *LinkRegistry) SetLifecycleCallback(cb func(registered bool, dev *RemoteDevice)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = cb
}

// Register adds a device for the given address, or returns the existing
// entry when the address is already registered. A different address while
// the registry is at capacity fails with ErrCapacityExceeded.
func (r *LinkRegistry) Register(addr string) (*RemoteDevice, error) {
	r.mu.Lock()

	if handle, ok := r.byAddr[addr]; ok {
		dev := r.devices[handle]
		r.mu.Unlock()
		return dev, nil
	}

	if len(r.devices) >= GetConfig().RegistryCapacity {
		r.mu.Unlock()
		r.logger.Warn().Str("address", addr).Msg("registration rejected, link occupied")
		return nil, fmt.Errorf("%w: device %s rejected", ErrCapacityExceeded, addr)
	}

	dev := &RemoteDevice{
		Addr:   addr,
		Handle: DeviceHandle(uuid.NewString()),
	}
	r.devices[dev.Handle] = dev
	r.byAddr[addr] = dev.Handle
	cb := r.onChange
	r.mu.Unlock()

	r.logger.Info().Str("address", addr).Str("handle", string(dev.Handle)).Msg("device registered")
	if cb != nil {
		cb(true, dev)
	}
	return dev, nil
}

// Lookup returns the device registered for the given address, if any.
func (r *LinkRegistry) Lookup(addr string) (*RemoteDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byAddr[addr]
	if !ok {
		return nil, false
	}
	return r.devices[handle], true
}

// Get returns the device for a handle, if still registered.
func (r *LinkRegistry) Get(handle DeviceHandle) (*RemoteDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[handle]
	return dev, ok
}

// SessionFor returns the device's session for the given profile. The
// second result is false when the handle is unknown or the session was
// never created.
func (r *LinkRegistry) SessionFor(handle DeviceHandle, p Profile) (SessionRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[handle]
	if !ok {
		return nil, false
	}
	switch p {
	case ProfileA2dp:
		if dev.a2dp == nil {
			return nil, false
		}
		return dev.a2dp, true
	case ProfileHfp:
		if dev.hfp == nil {
			return nil, false
		}
		return dev.hfp, true
	default:
		return nil, false
	}
}

// Remove drops the device. Removing an unknown handle is a no-op.
func (r *LinkRegistry) Remove(handle DeviceHandle) {
	r.mu.Lock()
	dev, ok := r.devices[handle]
	if ok {
		delete(r.devices, handle)
		delete(r.byAddr, dev.Addr)
	}
	cb := r.onChange
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Info().Str("address", dev.Addr).Msg("device removed")
	if cb != nil {
		cb(false, dev)
	}
}

// Active returns the registered device when exactly one is present. The
// coordinator treats it as the peer all user commands target.
func (r *LinkRegistry) Active() (*RemoteDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.devices) != 1 {
		return nil, false
	}
	for _, dev := range r.devices {
		return dev, true
	}
	return nil, false
}

// Count returns the number of registered devices.
func (r *LinkRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

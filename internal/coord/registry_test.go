package coord

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *LinkRegistry {
	logger := zerolog.Nop()
	return NewLinkRegistry(&logger)
}

func TestRegistrySingleDevice(t *testing.T) {
	r := newTestRegistry()

	dev, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.NotNil(t, dev)
	assert.NotEmpty(t, dev.Handle)
	assert.Equal(t, 1, r.Count())

	// Same address: same device, no error.
	again, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Same(t, dev, again)
	assert.Equal(t, 1, r.Count())

	// A second phone while the link is occupied is rejected.
	_, err = r.Register("11:22:33:44:55:66")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
}

func TestRegistryRemoveFreesCapacity(t *testing.T) {
	r := newTestRegistry()

	dev, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	r.Remove(dev.Handle)
	assert.Equal(t, 0, r.Count())

	_, ok := r.Lookup("AA:BB:CC:DD:EE:FF")
	assert.False(t, ok)

	_, err = r.Register("11:22:33:44:55:66")
	assert.NoError(t, err)
}

func TestRegistryRemoveUnknownHandleIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Remove(DeviceHandle("nope"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistrySessionFor(t *testing.T) {
	r := newTestRegistry()

	dev, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	// No sessions created yet.
	_, ok := r.SessionFor(dev.Handle, ProfileA2dp)
	assert.False(t, ok)
	_, ok = r.SessionFor(dev.Handle, ProfileHfp)
	assert.False(t, ok)

	dev.A2dp().state = A2dpConnected
	ref, ok := r.SessionFor(dev.Handle, ProfileA2dp)
	require.True(t, ok)
	assert.Equal(t, ProfileA2dp, ref.Profile())
	assert.True(t, ref.Connected())

	_, ok = r.SessionFor(DeviceHandle("unknown"), ProfileA2dp)
	assert.False(t, ok)
}

func TestRegistryLifecycleCallback(t *testing.T) {
	r := newTestRegistry()

	var registrations, removals int
	r.SetLifecycleCallback(func(registered bool, dev *RemoteDevice) {
		if registered {
			registrations++
		} else {
			removals++
		}
	})

	dev, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	r.Remove(dev.Handle)

	assert.Equal(t, 1, registrations)
	assert.Equal(t, 1, removals)
}

func TestRegistryActive(t *testing.T) {
	r := newTestRegistry()

	_, ok := r.Active()
	assert.False(t, ok)

	dev, err := r.Register("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	active, ok := r.Active()
	require.True(t, ok)
	assert.Same(t, dev, active)
}

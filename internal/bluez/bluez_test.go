package bluez

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrFromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     dbus.ObjectPath
		expected string
	}{
		{
			"device path",
			"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
			"AA:BB:CC:DD:EE:FF",
		},
		{
			"transport path",
			"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/fd3",
			"AA:BB:CC:DD:EE:FF",
		},
		{
			"ofono hfp modem path",
			"/hfp/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/voicecall01",
			"AA:BB:CC:DD:EE:FF",
		},
		{
			"adapter path has no device",
			"/org/bluez/hci0",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, addrFromPath(tt.path))
		})
	}
}

func TestHasUUID(t *testing.T) {
	props := map[string]dbus.Variant{
		"UUIDs": dbus.MakeVariant([]string{
			"0000110b-0000-1000-8000-00805f9b34fb",
			"0000111E-0000-1000-8000-00805F9B34FB",
		}),
	}
	assert.True(t, hasUUID(props, hfpUUID), "uuid match must be case-insensitive")
	assert.False(t, hasUUID(props, "00000000-0000-1000-8000-00805f9b34fb"))
	assert.False(t, hasUUID(map[string]dbus.Variant{}, hfpUUID))
}

func TestTrackFromVariant(t *testing.T) {
	v := dbus.MakeVariant(map[string]dbus.Variant{
		"Artist":   dbus.MakeVariant("Mina"),
		"Album":    dbus.MakeVariant("Studio Uno"),
		"Title":    dbus.MakeVariant("Se telefonando"),
		"Duration": dbus.MakeVariant(uint32(185000)),
	})

	track := trackFromVariant(v)
	require.NotNil(t, track)
	assert.Equal(t, "Mina", track.Artist)
	assert.Equal(t, "Studio Uno", track.Album)
	assert.Equal(t, "Se telefonando", track.Title)
	assert.Equal(t, 185*time.Second, track.Duration)

	assert.Nil(t, trackFromVariant(dbus.MakeVariant("not a track")))
}

func TestPositionFromVariant(t *testing.T) {
	pos, ok := positionFromVariant(dbus.MakeVariant(uint32(42000)))
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, pos)

	_, ok = positionFromVariant(dbus.MakeVariant("not a position"))
	assert.False(t, ok)
}

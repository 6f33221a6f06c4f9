// Package bluez translates BlueZ and oFono D-Bus signals into coordinator
// events and executes the coordinator's outbound commands against the
// bus. It owns no policy: pairing, SDP and codec negotiation stay in the
// stack, and every decision about the sync slot or the audio route is
// made by the coordinator.
package bluez

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName = "org.bluez"
	ofonoBusName = "org.ofono"

	deviceIface    = "org.bluez.Device1"
	transportIface = "org.bluez.MediaTransport1"
	playerIface    = "org.bluez.MediaPlayer1"

	propsIface        = "org.freedesktop.DBus.Properties"
	objectManagerFace = "org.freedesktop.DBus.ObjectManager"

	propsChangedMember      = "PropertiesChanged"
	interfacesAddedMember   = "InterfacesAdded"
	interfacesRemovedMember = "InterfacesRemoved"

	voiceCallManagerIface = "org.ofono.VoiceCallManager"
	voiceCallIface        = "org.ofono.VoiceCall"

	callAddedMember       = "CallAdded"
	callRemovedMember     = "CallRemoved"
	propertyChangedMember = "PropertyChanged"

	hfpUUID = "0000111e-0000-1000-8000-00805f9b34fb"
)

// addrFromPath extracts a Bluetooth address from any object path that
// contains a BlueZ device segment, e.g.
// "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/fd3" or the oFono HFP modem path
// "/hfp/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func addrFromPath(path dbus.ObjectPath) string {
	for _, segment := range strings.Split(string(path), "/") {
		if strings.HasPrefix(segment, "dev_") {
			return strings.ReplaceAll(segment[len("dev_"):], "_", ":")
		}
	}
	return ""
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

func variantBool(v dbus.Variant) bool {
	b, _ := v.Value().(bool)
	return b
}

func hasUUID(props map[string]dbus.Variant, uuid string) bool {
	v, ok := props["UUIDs"]
	if !ok {
		return false
	}
	uuids, ok := v.Value().([]string)
	if !ok {
		return false
	}
	for _, u := range uuids {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	return false
}

// Package ble provides the Bluetooth Low Energy transport used to talk to
// Avea bulbs. It handles adapter management, scanning, connection
// establishment, and raw characteristic writes and notifications; the
// command protocol itself lives in internal/avea.
package ble

import "context"

// Avea GATT UUIDs. The vendor service and command characteristic UUIDs
// spell "ElgatoMunich" in their trailing bytes.
const (
	ServiceUUID     = "f815e810-456c-6761-746f-4d756e696368"
	CommandCharUUID = "f815e811-456c-6761-746f-4d756e696368"

	// Standard Device Information Service, used to read the firmware
	// revision string. The command protocol has no firmware opcode.
	DeviceInfoServiceUUID = "0000180a-0000-1000-8000-00805f9b34fb"
	FirmwareRevisionUUID  = "00002a26-0000-1000-8000-00805f9b34fb"
)

// AdvertisedNamePrefix identifies Avea bulbs during a scan. The bulbs do
// not advertise their vendor service UUID, only their local name.
const AdvertisedNamePrefix = "Avea"

// Device represents a discovered bulb.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection is an active link to one bulb's command characteristic.
type Connection interface {
	// Write sends raw bytes to the command characteristic. With
	// withResponse set, it returns once the link layer acknowledges the
	// write; it never waits for the bulb's application-level reply.
	Write(data []byte, withResponse bool) error
	// Subscribe enables notifications on the command characteristic and
	// registers cb for every notification payload. On the wire this writes
	// the enable value 0x0001 to the client characteristic configuration
	// descriptor that sits one handle past the value handle.
	Subscribe(cb func(data []byte)) error
	// ReadFirmwareRevision reads the Device Information Service firmware
	// revision string.
	ReadFirmwareRevision() (string, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the link drops.
	OnDisconnect(cb func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers nearby Avea bulbs until ctx is cancelled.
	Scan(ctx context.Context) ([]Device, error)
	// Connect establishes a connection to the bulb at the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}

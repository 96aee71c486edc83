package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// HardwareAdapter wraps tinygo-org/bluetooth. On Linux the address is the
// bulb's MAC; on macOS it is the CoreBluetooth UUID assigned to the
// peripheral. Both are passed around as opaque strings.
type HardwareAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*hardwareConnection // keyed by device address
}

// NewHardwareAdapter creates a BLE adapter backed by the platform stack.
func NewHardwareAdapter() *HardwareAdapter {
	return &HardwareAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*hardwareConnection),
	}
}

func (a *HardwareAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// Adapter-level connect/disconnect handler. The stack fires this with
	// connected=false when a peripheral drops, which is how we learn that
	// a bulb went away.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[addr]
		a.mu.Unlock()
		if ok && conn.disconnectCb != nil {
			conn.disconnectCb()
		}
	})

	return nil
}

// Scan collects advertisements whose local name starts with "Avea" until
// ctx is cancelled. Avea bulbs advertise only their name, so there is no
// service UUID filter to lean on.
func (a *HardwareAdapter) Scan(ctx context.Context) ([]Device, error) {
	var mu sync.Mutex
	var devices []Device
	seen := make(map[string]bool)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !strings.HasPrefix(result.LocalName(), AdvertisedNamePrefix) {
			return
		}
		addr := result.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if seen[addr] {
			return
		}
		seen[addr] = true
		devices = append(devices, Device{
			Name:    result.LocalName(),
			Address: addr,
			RSSI:    int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}

func (a *HardwareAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// The stack's Connect blocks internally with its own timeout. Wrap it
	// to also respect ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect will eventually time out or succeed on
		// its own; we can't cancel it from here, only stop waiting.
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		conn := &hardwareConnection{device: &result.device}

		// Track the connection so the adapter-level disconnect handler
		// can find it and fire its OnDisconnect callback.
		a.mu.Lock()
		a.connections[address] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that HardwareAdapter implements Adapter.
var _ Adapter = (*HardwareAdapter)(nil)

type hardwareConnection struct {
	device       *bluetooth.Device
	disconnectCb func()

	// mu guards lazy characteristic discovery.
	mu      sync.Mutex
	cmdChar *bluetooth.DeviceCharacteristic
}

// commandChar discovers the Avea command characteristic on first use.
func (c *hardwareConnection) commandChar() (*bluetooth.DeviceCharacteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmdChar != nil {
		return c.cmdChar, nil
	}
	char, err := c.discover(ServiceUUID, CommandCharUUID)
	if err != nil {
		return nil, err
	}
	c.cmdChar = char
	return char, nil
}

// discover resolves a single characteristic by service and characteristic UUID.
func (c *hardwareConnection) discover(serviceUUID, charUUID string) (*bluetooth.DeviceCharacteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	chrUUID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{chrUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}
	return &chars[0], nil
}

func (c *hardwareConnection) Write(data []byte, withResponse bool) error {
	char, err := c.commandChar()
	if err != nil {
		return err
	}
	if withResponse {
		_, err = char.Write(data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	return err
}

func (c *hardwareConnection) Subscribe(cb func(data []byte)) error {
	char, err := c.commandChar()
	if err != nil {
		return err
	}
	return char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}

func (c *hardwareConnection) ReadFirmwareRevision() (string, error) {
	char, err := c.discover(DeviceInfoServiceUUID, FirmwareRevisionUUID)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 32)
	n, err := char.Read(buf)
	if err != nil {
		return "", fmt.Errorf("ble: read firmware revision: %w", err)
	}
	return string(buf[:n]), nil
}

func (c *hardwareConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *hardwareConnection) OnDisconnect(cb func()) {
	c.disconnectCb = cb
}

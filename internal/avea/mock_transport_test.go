package avea

import (
	"context"
	"sync"
	"time"

	"github.com/lightctl/avea/internal/ble"
)

// mockConn records writes and lets tests push notifications, standing in
// for a real bulb connection.
type mockConn struct {
	mu           sync.Mutex
	writes       [][]byte
	withResponse []bool
	callback     func([]byte)
	disconnectCb func()
	disconnected bool

	writeErr     error // returned by Write when set
	subscribeErr error // returned by Subscribe when set
	firmware     string

	// onWrite, when set, runs after each recorded write. Tests use it to
	// answer a query with a notification.
	onWrite func(data []byte)
}

func (c *mockConn) Write(data []byte, withResponse bool) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	c.withResponse = append(c.withResponse, withResponse)
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return nil
}

func (c *mockConn) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.callback = cb
	return nil
}

func (c *mockConn) ReadFirmwareRevision() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firmware, nil
}

func (c *mockConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *mockConn) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateNotification delivers a notification as the bulb would.
func (c *mockConn) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// SimulateDisconnect fires the registered disconnect callback.
func (c *mockConn) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *mockConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *mockConn) lastWritten() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[len(c.writes)-1]
}

// mockAdapter hands out mockConns for Dial tests.
type mockAdapter struct {
	mu   sync.Mutex
	conn *mockConn
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context) ([]ble.Device, error) {
	return []ble.Device{{Name: "Avea", Address: "AA:BB:CC:DD:EE:FF", RSSI: -50}}, nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (ble.Connection, error) {
	conn := &mockConn{}
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	return conn, nil
}

var (
	_ ble.Connection = (*mockConn)(nil)
	_ ble.Adapter    = (*mockAdapter)(nil)
)

// testDevice is the bulb used throughout the session tests.
var testDevice = ble.Device{Name: "Avea_1A2B", Address: "AA:BB:CC:DD:EE:FF", RSSI: -50}

// newReadySession returns a session with notifications enabled, no settle
// delay, and a short reply timeout suitable for tests.
func newReadySession(conn *mockConn) *Session {
	s := NewSession(conn, testDevice, SessionOptions{
		ReplyTimeout: 100 * time.Millisecond,
		SettleDelay:  0,
	})
	if err := s.EnableNotifications(); err != nil {
		panic("mock subscribe failed: " + err.Error())
	}
	return s
}

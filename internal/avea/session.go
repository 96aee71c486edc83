package avea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightctl/avea/internal/ble"
)

// State is the session's position in its connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateSubscribed
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotReady marks a command issued in a state that does not allow it:
// any command while disconnected, or a query before notifications are
// enabled.
var ErrNotReady = errors.New("avea: session not ready for this command")

// SessionOptions configures session behavior.
type SessionOptions struct {
	// ReplyTimeout bounds the wait for a query's reply notification.
	ReplyTimeout time.Duration
	// SettleDelay is how long a query waits after the most recent write
	// before asking the bulb anything. A query fired straight after a set
	// can otherwise read back stale data from the bulb.
	SettleDelay time.Duration
}

// DefaultSessionOptions returns sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ReplyTimeout: time.Second,
		SettleDelay:  500 * time.Millisecond,
	}
}

// Session owns the logical protocol state for one bulb: the connection, the
// single pending-reply slot, and the cached last-known color, brightness,
// and name. A session is not safe for concurrent command issuance; the
// protocol has no request IDs, so callers must serialize access. The
// pending-reply slot is still guarded internally so a racing second query
// fails with ErrQueryInFlight instead of corrupting reply matching.
type Session struct {
	device ble.Device
	opts   SessionOptions

	mu        sync.Mutex
	conn      ble.Connection
	state     State
	pending   chan []byte // non-nil while a query is outstanding
	lastWrite time.Time

	lastColor      Color
	lastBrightness uint16
	lastName       string
}

// NewSession wraps an established connection. The session starts in
// StateConnected; call EnableNotifications before issuing queries.
func NewSession(conn ble.Connection, device ble.Device, opts SessionOptions) *Session {
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	s := &Session{
		device: device,
		opts:   opts,
		conn:   conn,
		state:  StateConnected,
	}
	conn.OnDisconnect(func() {
		slog.Warn("[avea] bulb disconnected", "address", device.Address)
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
	})
	return s
}

// Dial connects to the bulb at address and returns a session ready for set
// commands. Queries additionally require EnableNotifications.
func Dial(ctx context.Context, adapter ble.Adapter, device ble.Device, opts SessionOptions) (*Session, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("avea: enable adapter: %w", err)
	}
	conn, err := adapter.Connect(ctx, device.Address)
	if err != nil {
		return nil, fmt.Errorf("avea: connect to %s: %w", device.Address, err)
	}
	return NewSession(conn, device, opts), nil
}

// Device returns the bulb this session controls.
func (s *Session) Device() ble.Device { return s.device }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnableNotifications subscribes to the bulb's reply notifications and
// moves the session to StateReady. It must complete before any query.
func (s *Session) EnableNotifications() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotReady, StateDisconnected)
	}
	conn := s.conn
	s.state = StateSubscribed
	s.mu.Unlock()

	if err := conn.Subscribe(s.handleNotification); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("avea: enable notifications: %w", err)
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// handleNotification routes a reply to the pending query, if any.
// Unsolicited notifications are the bulb confirming a set command; those
// are dropped.
func (s *Session) handleNotification(data []byte) {
	payload := make([]byte, len(data))
	copy(payload, data)

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending == nil {
		slog.Debug("[avea] dropping unsolicited notification", "address", s.device.Address, "len", len(payload))
		return
	}
	select {
	case pending <- payload:
	default:
	}
}

// write sends an encoded frame to the command characteristic. A transport
// failure tears the session down to StateDisconnected.
func (s *Session) write(frame []byte, withResponse bool) error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotReady, StateDisconnected)
	}
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Write(frame, withResponse); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("avea: write to %s: %w", s.device.Address, err)
	}

	s.mu.Lock()
	s.lastWrite = time.Now()
	s.mu.Unlock()
	return nil
}

// SetColor sends a color command. fade is how long the bulb blends toward
// the new color; it is rounded up to the protocol's decisecond resolution.
// On success the session's cached color becomes the start point for the
// next Fade.
func (s *Session) SetColor(c Color, fade time.Duration) error {
	frame, err := EncodeColor(c, fadeDeciseconds(fade))
	if err != nil {
		return err
	}
	if err := s.write(frame, true); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastColor = c
	s.mu.Unlock()
	return nil
}

// SetRGB sends a color command from 8-bit RGB, leaving the white channel off.
func (s *Session) SetRGB(r, g, b uint8, fade time.Duration) error {
	return s.SetColor(RGBToColor(r, g, b), fade)
}

// SetBrightness sends a brightness command, value in [0, MaxChannel].
func (s *Session) SetBrightness(value uint16) error {
	frame, err := EncodeBrightness(value)
	if err != nil {
		return err
	}
	if err := s.write(frame, true); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastBrightness = value
	s.mu.Unlock()
	return nil
}

// SetName renames the bulb. Names over MaxNameLen bytes are rejected
// without touching the transport.
func (s *Session) SetName(name string) error {
	frame, err := EncodeName(name)
	if err != nil {
		return err
	}
	if err := s.write(frame, true); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastName = name
	s.mu.Unlock()
	return nil
}

// query issues a single-opcode query and waits for its reply notification.
// Only one query may be outstanding at a time.
func (s *Session) query(ctx context.Context, op byte) (Reply, error) {
	frame, err := EncodeQuery(op)
	if err != nil {
		return Reply{}, err
	}

	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return Reply{}, fmt.Errorf("%w: queries need notifications enabled, session is %s", ErrNotReady, state)
	}
	if s.pending != nil {
		s.mu.Unlock()
		return Reply{}, ErrQueryInFlight
	}
	ch := make(chan []byte, 1)
	s.pending = ch
	settle := s.opts.SettleDelay - time.Since(s.lastWrite)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}()

	// Give the bulb a moment after the last write before querying, or it
	// may answer with the value it is still transitioning away from.
	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}

	if err := s.write(frame, true); err != nil {
		return Reply{}, err
	}

	select {
	case payload := <-ch:
		reply, err := DecodeReply(payload)
		if err != nil {
			return Reply{}, err
		}
		if reply.Op != op {
			return Reply{}, fmt.Errorf("%w: asked %#02x, bulb answered %#02x", ErrMalformedReply, op, reply.Op)
		}
		return reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-time.After(s.opts.ReplyTimeout):
		return Reply{}, fmt.Errorf("%w: no %#02x reply within %s", ErrTimeout, op, s.opts.ReplyTimeout)
	}
}

// Color queries the bulb's current color and refreshes the cached value.
func (s *Session) Color(ctx context.Context) (Color, error) {
	reply, err := s.query(ctx, OpColor)
	if err != nil {
		return Color{}, err
	}
	s.mu.Lock()
	s.lastColor = reply.Color
	s.mu.Unlock()
	return reply.Color, nil
}

// RGB queries the bulb's current color as 8-bit RGB.
func (s *Session) RGB(ctx context.Context) (r, g, b uint8, err error) {
	c, err := s.Color(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	r, g, b = c.RGB()
	return r, g, b, nil
}

// Brightness queries the bulb's current brightness.
func (s *Session) Brightness(ctx context.Context) (uint16, error) {
	reply, err := s.query(ctx, OpBrightness)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.lastBrightness = reply.Brightness
	s.mu.Unlock()
	return reply.Brightness, nil
}

// Name queries the bulb's current name.
func (s *Session) Name(ctx context.Context) (string, error) {
	reply, err := s.query(ctx, OpName)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.lastName = reply.Name
	s.mu.Unlock()
	return reply.Name, nil
}

// FirmwareVersion reads the bulb's firmware revision string from the
// standard Device Information Service.
func (s *Session) FirmwareVersion() (string, error) {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotReady, StateDisconnected)
	}
	conn := s.conn
	s.mu.Unlock()
	return conn.ReadFirmwareRevision()
}

// LastColor returns the cached color: the last value set or queried. It is
// the start point Fade interpolates from.
func (s *Session) LastColor() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastColor
}

// LastBrightness returns the cached brightness from the last set or query.
func (s *Session) LastBrightness() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBrightness
}

// LastName returns the cached name from the last set or query.
func (s *Session) LastName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastName
}

// Fade transitions the bulb smoothly from its cached color to target by
// sending one color command per tick at stepsPerSecond. Each step's fade
// time is one tick, so the bulb itself blends between samples. Steps are
// paced in real time and never wait for the bulb's reply; the first write
// error aborts the remaining sequence. Cancelling ctx between steps stops
// the transition, leaving the cached color at the last step actually sent.
func (s *Session) Fade(ctx context.Context, target Color, duration time.Duration, stepsPerSecond int) error {
	if err := target.validate(); err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("%w: fade duration %s", ErrInvalidArgument, duration)
	}
	if stepsPerSecond <= 0 {
		return fmt.Errorf("%w: %d steps per second", ErrInvalidArgument, stepsPerSecond)
	}

	steps := int(duration.Seconds() * float64(stepsPerSecond))
	plan := PlanTransition(s.LastColor(), target, steps)
	interval := time.Second / time.Duration(stepsPerSecond)

	slog.Debug("[avea] starting fade", "address", s.device.Address, "steps", plan.Steps(), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c, ok := plan.Next()
		if !ok {
			return nil
		}
		if err := s.SetColor(c, interval); err != nil {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FadeRGB is Fade with an 8-bit RGB target.
func (s *Session) FadeRGB(ctx context.Context, r, g, b uint8, duration time.Duration, stepsPerSecond int) error {
	return s.Fade(ctx, RGBToColor(r, g, b), duration, stepsPerSecond)
}

// Close disconnects from the bulb. The session cannot be reused afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.state = StateDisconnected
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// fadeDeciseconds converts a duration to the protocol's tenth-of-a-second
// fade field, rounding up so any positive fade stays a fade, and saturating
// at the field's 16-bit range.
func fadeDeciseconds(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	ds := (d.Milliseconds() + 99) / 100
	if ds > 0xFFFF {
		return 0xFFFF
	}
	return uint16(ds)
}

package avea

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Command opcodes. A frame consisting of just the opcode byte is a query;
// the bulb answers with a notification using the same opcode.
const (
	OpColor      byte = 0x35
	OpBrightness byte = 0x57
	OpName       byte = 0x58
)

// MaxNameLen is the longest bulb name the device accepts: the default ATT
// MTU of 23 bytes leaves 20 for the payload, one of which is the opcode.
const MaxNameLen = 19

const (
	colorFrameLen      = 12 // opcode + fade(2) + reserved + 4 channels * 2
	brightnessFrameLen = 3  // opcode + value(2)
)

// Protocol error taxonomy. All errors returned by the codec and session
// wrap one of these sentinels, so callers can test with errors.Is.
var (
	// ErrInvalidArgument marks a value outside the protocol's range:
	// a channel or brightness above MaxChannel, or a name over MaxNameLen.
	ErrInvalidArgument = errors.New("avea: invalid argument")

	// ErrMalformedReply marks a notification whose opcode is unknown or
	// whose payload does not match the opcode's layout.
	ErrMalformedReply = errors.New("avea: malformed reply")

	// ErrTimeout marks a query whose reply notification never arrived.
	ErrTimeout = errors.New("avea: timed out waiting for reply")

	// ErrQueryInFlight marks a second query issued while one is still
	// unresolved. The protocol has no request IDs, so replies match
	// queries purely by order and the session refuses to interleave.
	ErrQueryInFlight = errors.New("avea: another query is already in flight")
)

// EncodeColor builds a color command frame:
//
//	[0x35][fade deciseconds: 2B big-endian][0x00][white][red][green][blue]
//
// fadeDeciseconds is how long the bulb itself blends toward the new color,
// in tenths of a second.
func EncodeColor(c Color, fadeDeciseconds uint16) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	frame := make([]byte, colorFrameLen)
	frame[0] = OpColor
	binary.BigEndian.PutUint16(frame[1:3], fadeDeciseconds)
	frame[3] = 0x00 // reserved
	putChannel(frame[4:6], c.White, prefixWhite)
	putChannel(frame[6:8], c.Red, prefixRed)
	putChannel(frame[8:10], c.Green, prefixGreen)
	putChannel(frame[10:12], c.Blue, prefixBlue)
	return frame, nil
}

// EncodeBrightness builds a brightness command frame: [0x57][value: 2B
// big-endian]. Brightness carries no channel prefix.
func EncodeBrightness(value uint16) ([]byte, error) {
	if value > MaxChannel {
		return nil, fmt.Errorf("%w: brightness %d exceeds %d", ErrInvalidArgument, value, MaxChannel)
	}
	frame := make([]byte, brightnessFrameLen)
	frame[0] = OpBrightness
	binary.BigEndian.PutUint16(frame[1:3], value)
	return frame, nil
}

// EncodeName builds a rename frame: [0x58][UTF-8 name bytes]. Names longer
// than MaxNameLen are rejected, never truncated.
func EncodeName(name string) ([]byte, error) {
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("%w: name is %d bytes, device accepts at most %d", ErrInvalidArgument, len(name), MaxNameLen)
	}
	frame := make([]byte, 0, 1+len(name))
	frame = append(frame, OpName)
	frame = append(frame, name...)
	return frame, nil
}

// EncodeQuery builds the single-opcode frame that asks the bulb to report
// the value for op via notification.
func EncodeQuery(op byte) ([]byte, error) {
	switch op {
	case OpColor, OpBrightness, OpName:
		return []byte{op}, nil
	default:
		return nil, fmt.Errorf("%w: unknown query opcode %#02x", ErrInvalidArgument, op)
	}
}

// Reply is a decoded bulb notification. Op selects which of the payload
// fields is meaningful.
type Reply struct {
	Op         byte
	Color      Color  // set when Op == OpColor
	Brightness uint16 // set when Op == OpBrightness
	Name       string // set when Op == OpName
}

// DecodeReply parses a notification payload. The leading byte selects the
// variant; the remainder must match that variant's layout exactly.
func DecodeReply(data []byte) (Reply, error) {
	if len(data) == 0 {
		return Reply{}, fmt.Errorf("%w: empty notification", ErrMalformedReply)
	}
	switch data[0] {
	case OpColor:
		return decodeColorReply(data)
	case OpBrightness:
		return decodeBrightnessReply(data)
	case OpName:
		return Reply{Op: OpName, Name: string(data[1:])}, nil
	default:
		return Reply{}, fmt.Errorf("%w: unknown opcode %#02x", ErrMalformedReply, data[0])
	}
}

func decodeColorReply(data []byte) (Reply, error) {
	if len(data) != colorFrameLen {
		return Reply{}, fmt.Errorf("%w: color reply is %d bytes, want %d", ErrMalformedReply, len(data), colorFrameLen)
	}
	var c Color
	var err error
	if c.White, err = decodeChannel(data[4:6], prefixWhite); err != nil {
		return Reply{}, err
	}
	if c.Red, err = decodeChannel(data[6:8], prefixRed); err != nil {
		return Reply{}, err
	}
	if c.Green, err = decodeChannel(data[8:10], prefixGreen); err != nil {
		return Reply{}, err
	}
	if c.Blue, err = decodeChannel(data[10:12], prefixBlue); err != nil {
		return Reply{}, err
	}
	return Reply{Op: OpColor, Color: c}, nil
}

func decodeBrightnessReply(data []byte) (Reply, error) {
	if len(data) != brightnessFrameLen {
		return Reply{}, fmt.Errorf("%w: brightness reply is %d bytes, want %d", ErrMalformedReply, len(data), brightnessFrameLen)
	}
	value := binary.BigEndian.Uint16(data[1:3])
	if value > MaxChannel {
		return Reply{}, fmt.Errorf("%w: brightness %d exceeds %d", ErrMalformedReply, value, MaxChannel)
	}
	return Reply{Op: OpBrightness, Brightness: value}, nil
}

// Package avea implements the protocol spoken by Elgato Avea light bulbs
// over a single GATT characteristic: the color model, the command codec,
// and the per-bulb session that drives writes and notification replies.
package avea

import "fmt"

// MaxChannel is the largest value a color channel or brightness accepts.
// The bulb's internal color space is 12-bit per channel.
const MaxChannel uint16 = 4095

// Channel prefixes tag which channel a 16-bit wire field carries. They are
// OR'd onto the raw 12-bit value before serialization and XOR'd off on decode.
const (
	prefixWhite uint16 = 0x8000
	prefixRed   uint16 = 0x3000
	prefixGreen uint16 = 0x2000
	prefixBlue  uint16 = 0x1000
)

// Color is the bulb's native white/red/green/blue representation, each
// channel in [0, MaxChannel]. It is a plain value; build a new one per
// command rather than mutating in place.
type Color struct {
	White uint16
	Red   uint16
	Green uint16
	Blue  uint16
}

// validate rejects out-of-range channels. The codec refuses rather than
// clamps so callers get a deterministic contract.
func (c Color) validate() error {
	for _, ch := range [...]struct {
		name  string
		value uint16
	}{
		{"white", c.White},
		{"red", c.Red},
		{"green", c.Green},
		{"blue", c.Blue},
	} {
		if ch.value > MaxChannel {
			return fmt.Errorf("%w: %s channel %d exceeds %d", ErrInvalidArgument, ch.name, ch.value, MaxChannel)
		}
	}
	return nil
}

// RGBToColor maps 8-bit RGB to the bulb's 12-bit space, scaling each channel
// by 4095/255 with round-half-up arithmetic. White is left at zero; the bulb
// mixes its dedicated white LEDs only when asked for explicitly.
func RGBToColor(r, g, b uint8) Color {
	return Color{
		Red:   scaleUp(r),
		Green: scaleUp(g),
		Blue:  scaleUp(b),
	}
}

// RGB maps the color back to 8-bit RGB, discarding the white channel.
// The round trip through RGBToColor is lossy in the low bits: 4095 is not
// a multiple of 255, so both directions round.
func (c Color) RGB() (r, g, b uint8) {
	return scaleDown(c.Red), scaleDown(c.Green), scaleDown(c.Blue)
}

func scaleUp(v uint8) uint16 {
	return uint16((uint32(v)*uint32(MaxChannel) + 127) / 255)
}

func scaleDown(v uint16) uint8 {
	if v > MaxChannel {
		v = MaxChannel
	}
	return uint8((uint32(v)*255 + uint32(MaxChannel)/2) / uint32(MaxChannel))
}

// putChannel serializes a prefixed channel into b. The bulb expects the
// low byte of (value | prefix) first; the worked protocol captures show
// white=0 on the wire as 00 80 and red=4095 as FF 3F.
func putChannel(b []byte, value, prefix uint16) {
	tagged := value | prefix
	b[0] = byte(tagged)
	b[1] = byte(tagged >> 8)
}

// decodeChannel reverses putChannel. It fails when the field does not carry
// the expected prefix, which would leave stray high bits after the XOR.
func decodeChannel(b []byte, prefix uint16) (uint16, error) {
	tagged := uint16(b[0]) | uint16(b[1])<<8
	value := tagged ^ prefix
	if value > MaxChannel {
		return 0, fmt.Errorf("%w: channel field %#04x does not carry prefix %#04x", ErrMalformedReply, tagged, prefix)
	}
	return value, nil
}

package dial

// Ring layout: 16 hand LEDs wired counter-clockwise plus one marker LED.
const (
	RingLEDs  = 16
	LEDCount  = RingLEDs + 1
	MarkerLED = RingLEDs
)

// Color is packed 0xRRGGBB.
type Color uint32

func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

func (c Color) R() uint8 { return uint8(c >> 16) }
func (c Color) G() uint8 { return uint8(c >> 8) }
func (c Color) B() uint8 { return uint8(c) }

// Frame is one color per LED, indexed by LED number.
type Frame [LEDCount]Color

var markerColor = RGB(16, 16, 16)

// falloff[d] is the channel brightness d positions away from a hand.
var falloff = [RingLEDs]uint8{255, 213, 175, 142, 114, 89, 68, 50, 36, 25, 16, 10, 5, 2, 1, 1}

// Render paints h: big hand in red, medium in green, small in blue.
func Render(h Hands) Frame {
	var f Frame
	for p := 0; p < RingLEDs; p++ {
		pos := pixelPosition(p)
		f[RingLEDs-1-p] = RGB(
			intensity(pos, h.Big),
			intensity(pos, h.Medium),
			intensity(pos, h.Small),
		)
	}
	f[MarkerLED] = markerColor
	return f
}

func pixelPosition(p int) uint8 {
	return uint8(p * Positions / RingLEDs)
}

func intensity(pixelPos, hand uint8) uint8 {
	d := circularDistance(pixelPos, hand)
	if int(d) >= len(falloff) {
		return 0
	}
	return falloff[d]
}

// circularDistance is the shorter way around the dial between a and b.
func circularDistance(a, b uint8) uint8 {
	big, small := a, b
	if small > big {
		big, small = small, big
	}
	if d := big - small; d <= Positions/2 {
		return d
	}
	return Positions - (big - small)
}

// Package dial turns sensor data into hand positions and paints them on the
// LED ring.
package dial

import "math"

// Positions is the number of distinct hand positions around the dial.
const Positions = 120

// Hands holds three positions, each in [0, Positions).
type Hands struct {
	Big    uint8 `json:"big"`
	Medium uint8 `json:"medium"`
	Small  uint8 `json:"small"`
}

// Normalize wraps v into [0, rng) and scales it to a hand position.
// NaN and infinities land on 0.
func Normalize(v, rng float64) uint8 {
	if rng <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v = math.Mod(v, rng)
	if v < 0 {
		v += rng
	}
	p := int(v * Positions / rng)
	// A tiny negative v can round up to exactly rng.
	if p >= Positions {
		p = 0
	}
	return uint8(p)
}

package dial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pocketwatch/internal/gps"
)

func TestNormalize_Range(t *testing.T) {
	values := []float64{0, 1e-12, -1e-12, 0.5, -0.5, 0.999999999, 1, 7.25, -1234.5678, 1e9, -1e9}
	for _, rng := range []float64{1, 60, 3600, 43200, 2 * math.Pi} {
		for _, v := range values {
			got := Normalize(v*rng, rng)
			assert.Less(t, got, uint8(Positions), "v=%v rng=%v", v, rng)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for n := 0; n < Positions; n++ {
		assert.Equal(t, uint8(n), Normalize(float64(n), Positions))
		assert.Equal(t, uint8(n), Normalize(float64(n+Positions), Positions))
		assert.Equal(t, uint8(n), Normalize(float64(n-Positions), Positions))
	}
}

func TestNormalize_Edges(t *testing.T) {
	assert.Equal(t, uint8(0), Normalize(math.NaN(), 1))
	assert.Equal(t, uint8(0), Normalize(math.Inf(1), 1))
	assert.Equal(t, uint8(0), Normalize(math.Inf(-1), 1))
	assert.Equal(t, uint8(0), Normalize(-1e-18, 1))
	assert.Equal(t, uint8(90), Normalize(-0.25, 1))
	assert.InDelta(t, 30, float64(Normalize(math.Pi/2, 2*math.Pi)), 1)
	assert.Equal(t, uint8(0), Normalize(1, 0))
}

func TestClockHands(t *testing.T) {
	// 19:30:00 UTC is 12:30 local.
	h, ok := Compute(Snapshot{Mode: ModeClock, Fix: gps.Fix{Hour: 19, Minute: 30}})
	assert.True(t, ok)
	assert.Equal(t, Hands{Big: 5, Medium: 60, Small: 0}, h)

	// 03:00 UTC is 20:00 the previous day.
	h, _ = Compute(Snapshot{Mode: ModeClock, Fix: gps.Fix{Hour: 3, Second: 30}})
	assert.Equal(t, uint8(80), h.Big)
	assert.Equal(t, uint8(1), h.Medium)
	assert.Equal(t, uint8(60), h.Small)
}

func TestSpeedFraction_ContinuousAtKnee(t *testing.T) {
	knee := speedKneeKmh / kmhPerKnot
	below := SpeedFraction(knee * (1 - 1e-9))
	above := SpeedFraction(knee * (1 + 1e-9))
	assert.InDelta(t, 10.0/24, below, 1e-6)
	assert.InDelta(t, below, above, 1e-6)
}

func TestSpeedFraction_Shape(t *testing.T) {
	assert.Equal(t, 0.0, SpeedFraction(0))
	assert.Equal(t, 0.0, SpeedFraction(-3))

	// 100 km/h is a quarter of the way along the curve.
	assert.InDelta(t, (17*0.25-7*0.0625)/24, SpeedFraction(100/kmhPerKnot), 1e-9)

	prev := -1.0
	for kt := 0.0; kt < 2000; kt += 7 {
		f := SpeedFraction(kt)
		assert.Greater(t, f, prev, "kt=%v", kt)
		prev = f
	}
}

func TestSpeedHand_StandstillAtNine(t *testing.T) {
	assert.Equal(t, uint8(90), SpeedHand(0))
}

func TestAltitudeHand(t *testing.T) {
	assert.Equal(t, uint8(40), AltitudeHand(0))
	assert.Equal(t, uint8(0), AltitudeHand(5000))
	assert.InDelta(t, 60, int(AltitudeHand(-10000)), 1)
	// Climbing moves the hand counter-clockwise.
	assert.Less(t, AltitudeHand(2500), AltitudeHand(0))
}

func TestDistanceHand(t *testing.T) {
	assert.Equal(t, uint8(119), DistanceHand(0))
	assert.Equal(t, uint8(119), DistanceHand(3))
	assert.Equal(t, uint8(36), DistanceHand(1e9))
	assert.Equal(t, uint8(36), DistanceHand(1e8))

	prev := DistanceHand(4)
	for m := 10.0; m < 1e8; m *= 3 {
		cur := DistanceHand(m)
		assert.LessOrEqual(t, cur, prev, "m=%v", m)
		prev = cur
	}
}

func TestCompute_UnsupportedMode(t *testing.T) {
	_, ok := Compute(Snapshot{Mode: 4})
	assert.False(t, ok)
	assert.Equal(t, "unsupported", Mode(9).String())
}

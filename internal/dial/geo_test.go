package dial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pocketwatch/internal/gps"
	"pocketwatch/internal/waypoint"
)

func deg(d float64) float64 { return d * math.Pi / 180 }

func TestDistance(t *testing.T) {
	a := waypoint.Coord{Lat: deg(39.7), Lon: deg(-104.9)}
	assert.Equal(t, 0.0, Distance(a, a))

	b := waypoint.Coord{Lat: deg(40.7), Lon: deg(-104.9)}
	assert.InDelta(t, EarthRadius*math.Pi/180, Distance(a, b), 1e-6)
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestBearing(t *testing.T) {
	origin := waypoint.Coord{}
	assert.InDelta(t, 0, Bearing(origin, waypoint.Coord{Lat: 0.01}), 1e-12)
	assert.InDelta(t, math.Pi/2, Bearing(origin, waypoint.Coord{Lon: 0.01}), 1e-12)
	assert.InDelta(t, -math.Pi/2, Bearing(origin, waypoint.Coord{Lon: -0.01}), 1e-12)
	assert.InDelta(t, math.Pi, math.Abs(Bearing(origin, waypoint.Coord{Lat: -0.01})), 1e-12)
}

func TestForward_SpeedGate(t *testing.T) {
	s := Snapshot{Heading: 1, Fix: gps.Fix{TrackAngle: 2, GroundSpeedKnots: 9.99}}
	assert.Equal(t, 1.0, Forward(s))
	s.Fix.GroundSpeedKnots = 10
	assert.Equal(t, 2.0, Forward(s))
}

func TestReturnHands(t *testing.T) {
	here := waypoint.Coord{Lat: deg(39.7), Lon: deg(-104.9)}
	s := Snapshot{
		Mode:         ModeFastReturn,
		Fix:          gps.Fix{Latitude: here.Lat, Longitude: here.Lon},
		FastWaypoint: here,
	}
	h, ok := Compute(s)
	assert.True(t, ok)
	assert.Equal(t, Hands{Big: 0, Medium: 0, Small: 119}, h)

	// Waypoint due east while facing east: straight ahead.
	s.Mode = ModeSlowReturn
	s.SlowWaypoint = waypoint.Coord{Lat: 0, Lon: 0.001}
	s.Fix.Latitude, s.Fix.Longitude = 0, 0
	s.Heading = math.Pi / 2
	h, _ = Compute(s)
	assert.InDelta(t, 90, float64(h.Big), 1)
	assert.Equal(t, uint8(0), h.Medium)
	assert.Less(t, h.Small, uint8(119))

	s.Heading = 0
	h, _ = Compute(s)
	assert.Equal(t, uint8(0), h.Big)
	assert.InDelta(t, 30, float64(h.Medium), 1)
}

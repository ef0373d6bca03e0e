package dial

import (
	"math"

	"pocketwatch/internal/gps"
	"pocketwatch/internal/waypoint"
)

// Mode selects what the hands show.
type Mode uint8

const (
	ModeClock Mode = iota
	ModeTravel
	ModeFastReturn
	ModeSlowReturn

	NumModes = 4
)

func (m Mode) String() string {
	switch m {
	case ModeClock:
		return "clock"
	case ModeTravel:
		return "travel"
	case ModeFastReturn:
		return "fast-return"
	case ModeSlowReturn:
		return "slow-return"
	default:
		return "unsupported"
	}
}

// Snapshot is everything the hand calculations read in one pass.
type Snapshot struct {
	Fix gps.Fix `json:"fix"`

	// Heading is the compass heading in radians.
	Heading  float64 `json:"heading_rad"`
	CompassX int16   `json:"compass_x"`
	CompassY int16   `json:"compass_y"`
	CompassZ int16   `json:"compass_z"`

	Mode Mode `json:"mode"`

	FastWaypoint waypoint.Coord `json:"fast_waypoint"`
	SlowWaypoint waypoint.Coord `json:"slow_waypoint"`
}

// Position is the current fix as a coordinate.
func (s Snapshot) Position() waypoint.Coord {
	return waypoint.Coord{Lat: s.Fix.Latitude, Lon: s.Fix.Longitude}
}

const (
	// Local time is UTC-7.
	zoneOffsetHours = -7

	kmhPerKnot = 1.8519984

	// Above this the speed curve continues as a straight line.
	speedKneeKmh = 1000.0

	// Five kilometres fill a third of the dial.
	altitudeFullScale = 15000.0

	// Smallest distance the log scale resolves, just above √10 m.
	minDistanceMeters = 3.17
	maxDistanceTurn   = 0.7
)

// Compute returns the hands for s.Mode. ok is false for an unknown mode.
func Compute(s Snapshot) (h Hands, ok bool) {
	switch s.Mode {
	case ModeClock:
		return clockHands(s.Fix), true
	case ModeTravel:
		return Hands{Big: north(s), Medium: SpeedHand(s.Fix.GroundSpeedKnots), Small: AltitudeHand(s.Fix.AltitudeMeters)}, true
	case ModeFastReturn:
		return returnHands(s, s.FastWaypoint), true
	case ModeSlowReturn:
		return returnHands(s, s.SlowWaypoint), true
	default:
		return Hands{}, false
	}
}

// Hour over 12 hours, minute over an hour, second over a minute, all in
// seconds so the hands sweep.
func clockHands(f gps.Fix) Hands {
	second := float64(f.Second)
	minute := float64(f.Minute)*60 + second
	hour := float64(int(f.Hour)+zoneOffsetHours)*3600 + minute
	return Hands{
		Big:    Normalize(hour, 43200),
		Medium: Normalize(minute, 3600),
		Small:  Normalize(second, 60),
	}
}

// north points from forward to north.
func north(s Snapshot) uint8 {
	return Normalize(-Forward(s), 2*math.Pi)
}

// SpeedFraction maps ground speed to a fraction of a turn measured from noon.
// Up to 1000 km/h it follows the quadratic Bezier through (0, 0),
// (100, 4.25/12) and (1000, 5/12); beyond that it is linear.
func SpeedFraction(knots float64) float64 {
	v := knots * kmhPerKnot
	switch {
	case v > speedKneeKmh:
		return v/14400 + 25.0/72
	case v >= 0:
		t := (-5 + math.Sqrt(25+2*v)) / 40
		return (17*t - 7*t*t) / 24
	default:
		return 0
	}
}

// SpeedHand puts zero speed at nine o'clock.
func SpeedHand(knots float64) uint8 {
	return Normalize(SpeedFraction(knots)-0.25, 1)
}

// AltitudeHand counts counter-clockwise from four o'clock: 5 km reaches
// noon, -10 km reaches six o'clock.
func AltitudeHand(meters float64) uint8 {
	pct := meters / altitudeFullScale
	if pct < 0 {
		pct /= 4
	}
	return Normalize(1.0/3-pct, 1)
}

// DistanceHand is a counter-clockwise log scale: 10 m is 5% of a turn and
// each decade adds 10%, capped at 70%.
func DistanceHand(meters float64) uint8 {
	frac := math.Log10(math.Max(meters, minDistanceMeters))*0.1 - 0.05
	if frac > maxDistanceTurn {
		frac = maxDistanceTurn
	}
	return Normalize(-frac, 1)
}

func returnHands(s Snapshot, to waypoint.Coord) Hands {
	from := s.Position()
	return Hands{
		Big:    north(s),
		Medium: Normalize(Bearing(from, to)-Forward(s), 2*math.Pi),
		Small:  DistanceHand(Distance(from, to)),
	}
}

package dial

import (
	"math"

	"pocketwatch/internal/waypoint"
)

// EarthRadius is the mean radius in meters.
const EarthRadius = 6371000.0

// forwardGateKnots is the speed at which the GPS track replaces the compass.
const forwardGateKnots = 10.0

// Distance is the haversine great-circle distance in meters.
func Distance(from, to waypoint.Coord) float64 {
	sLat := math.Sin((to.Lat - from.Lat) / 2)
	sLon := math.Sin((to.Lon - from.Lon) / 2)
	a := sLat*sLat + math.Cos(to.Lat)*math.Cos(from.Lat)*sLon*sLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Bearing is the initial great-circle bearing from from to to, radians
// clockwise from north, in (-π, π].
func Bearing(from, to waypoint.Coord) float64 {
	dLon := to.Lon - from.Lon
	y := math.Sin(dLon) * math.Cos(to.Lat)
	x := math.Cos(from.Lat)*math.Sin(to.Lat) - math.Sin(from.Lat)*math.Cos(to.Lat)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// Forward is the direction the wearer is facing: compass heading when slow,
// GPS track once moving at 10 knots or more.
func Forward(s Snapshot) float64 {
	if s.Fix.GroundSpeedKnots < forwardGateKnots {
		return s.Heading
	}
	return s.Fix.TrackAngle
}

package sim

import (
	"math"
	"time"
)

// metersPerDegLat is the small-angle scale used by the walk.
const metersPerDegLat = 111195.0

// Walk is a deterministic figure-eight around a center point.
type Walk struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltMeters    float64
	RadiusM      float64
	Period       time.Duration
}

func (w Walk) period() time.Duration {
	if w.Period <= 0 {
		return 10 * time.Minute
	}
	return w.Period
}

func (w Walk) radius() float64 {
	if w.RadiusM <= 0 {
		return 500
	}
	return w.RadiusM
}

// StateAt follows the Lissajous path x = cos(ωt), y = ½·sin(2ωt), scaled to
// RadiusM. Altitude swings ±20 m around AltMeters over half a period.
func (w Walk) StateAt(elapsed time.Duration) State {
	period := w.period()
	radiusDeg := w.radius() / metersPerDegLat

	phase := float64(elapsed%period) / float64(period)
	wt := 2 * math.Pi * phase
	x := math.Cos(wt)
	y := 0.5 * math.Sin(2*wt)

	cosLat := math.Cos(w.CenterLatDeg * math.Pi / 180)
	lat := w.CenterLatDeg + radiusDeg*y
	lon := w.CenterLonDeg + radiusDeg*x/cosLat

	// Velocity in radius units per period.
	vx := -2 * math.Pi * math.Sin(wt)
	vy := 2 * math.Pi * math.Cos(2*wt)
	track := math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)

	speedMps := math.Hypot(vx, vy) * w.radius() / period.Seconds()
	alt := w.AltMeters + 20*math.Sin(2*wt)

	return State{
		LatDeg:    lat,
		LonDeg:    lon,
		TrackDeg:  track,
		GroundKt:  speedMps * 3600 / 1852,
		AltMeters: alt,
	}
}

// Package sim fakes a GPS receiver: a path supplies positions over time and
// a Receiver renders them as the NMEA byte stream a real module would send.
package sim

import "time"

// State is the receiver's view at one instant.
type State struct {
	LatDeg    float64
	LonDeg    float64
	TrackDeg  float64
	GroundKt  float64
	AltMeters float64
}

// Path gives the state after elapsed time since the receiver started.
type Path interface {
	StateAt(elapsed time.Duration) State
}

// Static is a Path that never moves.
type Static State

func (s Static) StateAt(time.Duration) State { return State(s) }

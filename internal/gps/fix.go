package gps

import (
	"math"
	"sync/atomic"
)

// Flags records which sentence types have been decoded into a Fix.
type Flags uint8

const (
	HasRMC Flags = 0x01
	HasGGA Flags = 0x02

	complete = HasRMC | HasGGA
)

// Fix is one consistent GPS snapshot. Angles are radians.
type Fix struct {
	YearSince2000 uint8 `json:"year_since_2000"`
	Month         uint8 `json:"month"`
	Day           uint8 `json:"day"`
	Hour          uint8 `json:"hour"`
	Minute        uint8 `json:"minute"`
	Second        uint8 `json:"second"`

	Latitude  float64 `json:"lat_rad"`
	Longitude float64 `json:"lon_rad"`

	GroundSpeedKnots float64 `json:"ground_speed_kt"`
	TrackAngle       float64 `json:"track_rad"`
	AltitudeMeters   float64 `json:"alt_m"`

	Flags Flags `json:"flags"`
}

// Complete reports whether both RMC and GGA data are present.
func (f Fix) Complete() bool {
	return f.Flags&complete == complete
}

func (f Fix) LatitudeDeg() float64  { return f.Latitude * 180 / math.Pi }
func (f Fix) LongitudeDeg() float64 { return f.Longitude * 180 / math.Pi }

// Buffer is the two-slot arena shared by the parser (writer) and the dial
// engine (reader). The writer only touches the inactive slot; the reader only
// sees the active one. Switching slots is a single atomic store.
//
// Slot contents are owned by the scheduler goroutine; other goroutines must
// take copies through the scheduler rather than call Active themselves.
type Buffer struct {
	slots  [2]Fix
	active atomic.Uint32
}

// Active returns a copy of the slot readers are allowed to see.
func (b *Buffer) Active() Fix {
	return b.slots[b.active.Load()&1]
}

func (b *Buffer) inactive() *Fix {
	return &b.slots[(b.active.Load()+1)&1]
}

// promote makes the inactive slot active and empties the slot it replaces
// so the next sentences decode into a clean record.
func (b *Buffer) promote() {
	old := b.active.Load() & 1
	b.slots[old].Flags = 0
	b.active.Store(old ^ 1)
	b.slots[old] = Fix{}
}

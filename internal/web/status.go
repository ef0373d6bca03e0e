package web

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"pocketwatch/internal/dial"
	"pocketwatch/internal/gps"
	"pocketwatch/internal/waypoint"
)

// Live is what the scheduler knows after a render.
type Live struct {
	Snapshot   dial.Snapshot
	Hands      dial.Hands
	HandsValid bool
	Parser     gps.Stats
	Link       gps.LinkStatus
	FastHolds  uint8
	SlowHolds  uint8
	Rendered   uint64
	Steps      uint64
	Heartbeats uint64
	MQTTSent   uint64
	MQTTFailed uint64
}

type Status struct {
	startUnixNano int64
	lastTickNano  int64
	ticks         uint64
	source        atomic.Value // string
	peripherals   atomic.Value // map[string]bool
	journalPath   atomic.Value // string
	live          atomic.Value // Live
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.source.Store("")
	s.peripherals.Store(map[string]bool{})
	s.journalPath.Store("")
	s.live.Store(Live{})
	return s
}

// SetStatic records values fixed at startup.
func (s *Status) SetStatic(source string, peripherals map[string]bool, journalPath string) {
	if source != "" {
		s.source.Store(source)
	}
	if peripherals != nil {
		cp := make(map[string]bool, len(peripherals))
		for k, v := range peripherals {
			cp[k] = v
		}
		s.peripherals.Store(cp)
	}
	if journalPath != "" {
		s.journalPath.Store(journalPath)
	}
}

// MarkTick is called once per scheduler pass.
func (s *Status) MarkTick(nowUTC time.Time) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastTickNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.ticks, 1)
}

func (s *Status) SetLive(l Live) {
	s.live.Store(l)
}

// FixView and WaypointView carry Finite=false, with the offending numbers
// zeroed, when the source held NaN or Inf. encoding/json rejects both.
type FixView struct {
	Complete bool    `json:"complete"`
	Finite   bool    `json:"finite"`
	UTC      string  `json:"utc"`
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	SpeedKt  float64 `json:"speed_kt"`
	TrackDeg float64 `json:"track_deg"`
	AltM     float64 `json:"alt_m"`
}

type WaypointView struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	Finite bool    `json:"finite"`
}

type CompassView struct {
	HeadingDeg float64 `json:"heading_deg"`
	X          int16   `json:"x"`
	Y          int16   `json:"y"`
	Z          int16   `json:"z"`
}

type TelemetryView struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}

type BuildView struct {
	GoVersion string `json:"go_version"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

type StatusSnapshot struct {
	Service     string          `json:"service"`
	NowUTC      string          `json:"now_utc"`
	UptimeSec   int64           `json:"uptime_sec"`
	Ticks       uint64          `json:"ticks"`
	LastTickUTC string          `json:"last_tick_utc,omitempty"`
	Source      string          `json:"source"`
	Peripherals map[string]bool `json:"peripherals"`

	Mode       string         `json:"mode"`
	Hands      dial.Hands     `json:"hands"`
	HandsValid bool           `json:"hands_valid"`
	Rendered   uint64         `json:"rendered"`
	Steps      uint64         `json:"steps"`
	Fix        FixView        `json:"fix"`
	Compass    CompassView    `json:"compass"`
	Parser     gps.Stats      `json:"parser"`
	Link       gps.LinkStatus `json:"link"`

	FastWaypoint WaypointView `json:"fast_waypoint"`
	SlowWaypoint WaypointView `json:"slow_waypoint"`
	FastHolds    uint8        `json:"fast_holds"`
	SlowHolds    uint8        `json:"slow_holds"`

	Heartbeats uint64        `json:"heartbeats"`
	MQTT       TelemetryView `json:"mqtt"`

	Disk  *DiskSnapshot `json:"disk,omitempty"`
	Build BuildView     `json:"build"`
}

// finite zeroes v and clears *ok when v is NaN or Inf.
func finite(v float64, ok *bool) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*ok = false
		return 0
	}
	return v
}

func fixView(f gps.Fix) FixView {
	v := FixView{
		Complete: f.Complete(),
		Finite:   true,
		UTC: fmt.Sprintf("20%02d-%02d-%02dT%02d:%02d:%02dZ",
			f.YearSince2000, f.Month, f.Day, f.Hour, f.Minute, f.Second),
	}
	v.LatDeg = finite(f.LatitudeDeg(), &v.Finite)
	v.LonDeg = finite(f.LongitudeDeg(), &v.Finite)
	v.SpeedKt = finite(f.GroundSpeedKnots, &v.Finite)
	v.TrackDeg = finite(f.TrackAngle*180/math.Pi, &v.Finite)
	v.AltM = finite(f.AltitudeMeters, &v.Finite)
	return v
}

func waypointView(c waypoint.Coord) WaypointView {
	v := WaypointView{Finite: true}
	v.LatDeg = finite(c.LatDeg(), &v.Finite)
	v.LonDeg = finite(c.LonDeg(), &v.Finite)
	return v
}

func compassView(s dial.Snapshot) CompassView {
	ok := true
	return CompassView{
		HeadingDeg: finite(s.Heading*180/math.Pi, &ok),
		X:          s.CompassX,
		Y:          s.CompassY,
		Z:          s.CompassZ,
	}
}

func buildView() BuildView {
	v := BuildView{GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		v.Version = bi.Main.Version
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				v.Commit = s.Value
			case "vcs.modified":
				v.Dirty = s.Value == "true"
			}
		}
	}
	return v
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	lastTick := atomic.LoadInt64(&s.lastTickNano)
	live := s.live.Load().(Live)
	snap := live.Snapshot

	out := StatusSnapshot{
		Service:     "pocketwatch",
		NowUTC:      nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:   int64(nowUTC.Sub(start).Seconds()),
		Ticks:       atomic.LoadUint64(&s.ticks),
		Source:      s.source.Load().(string),
		Peripherals: s.peripherals.Load().(map[string]bool),

		Mode:       snap.Mode.String(),
		Hands:      live.Hands,
		HandsValid: live.HandsValid,
		Rendered:   live.Rendered,
		Steps:      live.Steps,
		Fix:        fixView(snap.Fix),
		Compass:    compassView(snap),
		Parser:     live.Parser,
		Link:       live.Link,

		FastWaypoint: waypointView(snap.FastWaypoint),
		SlowWaypoint: waypointView(snap.SlowWaypoint),
		FastHolds:    live.FastHolds,
		SlowHolds:    live.SlowHolds,

		Heartbeats: live.Heartbeats,
		MQTT:       TelemetryView{Sent: live.MQTTSent, Failed: live.MQTTFailed},

		Build: buildView(),
	}
	if lastTick != 0 {
		out.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	if p := s.journalPath.Load().(string); p != "" {
		out.Disk = snapshotDisk(p)
	}
	return out
}

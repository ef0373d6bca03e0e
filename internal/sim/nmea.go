package sim

import (
	"fmt"
	"math"
	"time"
)

// Sentences renders st as the RMC and GGA pair a receiver sends once per
// second, each framed with checksum and CRLF.
func Sentences(st State, utc time.Time) []string {
	utc = utc.UTC()
	hms := fmt.Sprintf("%02d%02d%02d.00", utc.Hour(), utc.Minute(), utc.Second())
	lat, ns := latLon(st.LatDeg, 2, 'N', 'S')
	lon, ew := latLon(st.LonDeg, 3, 'E', 'W')

	rmc := fmt.Sprintf("GPRMC,%s,A,%s,%c,%s,%c,%.1f,%.1f,%02d%02d%02d,,",
		hms, lat, ns, lon, ew,
		math.Max(st.GroundKt, 0), math.Mod(st.TrackDeg+360, 360),
		utc.Day(), int(utc.Month()), utc.Year()%100)
	gga := fmt.Sprintf("GPGGA,%s,%s,%c,%s,%c,1,08,0.9,%.1f,M,0.0,M,,",
		hms, lat, ns, lon, ew, st.AltMeters)

	return []string{frame(rmc), frame(gga)}
}

// latLon formats |deg| as degrees then minutes with four decimals.
func latLon(deg float64, degDigits int, pos, neg byte) (string, byte) {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	d := math.Floor(deg)
	m := math.Round((deg-d)*60*1e4) / 1e4
	if m >= 60 {
		d++
		m -= 60
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(d), m), hemi
}

func frame(payload string) string {
	var ck byte
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

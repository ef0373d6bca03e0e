package gps

import (
	"bytes"
	"math"
	"strconv"
)

const (
	maxSentenceLen = 180
	// "*hh\r\n"
	tailLen   = 5
	prefixLen = 7
	minLen    = prefixLen + tailLen

	degToRad = math.Pi / 180
)

type sentenceKind int

const (
	kindUnknown sentenceKind = iota
	kindRMC
	kindGGA
)

var (
	prefixRMC = []byte("$GPRMC,")
	prefixGGA = []byte("$GPGGA,")
)

// sentenceComplete reports whether buf ends in "*hh" followed by a line
// terminator. Only the '*' and the final '\n' are checked.
func sentenceComplete(buf []byte) bool {
	n := len(buf)
	return n >= tailLen && buf[n-1] == '\n' && buf[n-tailLen] == '*'
}

// classify validates a complete sentence and reports its kind.
// kindUnknown means the sentence must be dropped.
func classify(s []byte) sentenceKind {
	if len(s) < minLen {
		return kindUnknown
	}
	star := len(s) - tailLen
	if s[star] != '*' {
		return kindUnknown
	}

	var kind sentenceKind
	switch {
	case bytes.HasPrefix(s, prefixRMC):
		kind = kindRMC
	case bytes.HasPrefix(s, prefixGGA):
		kind = kindGGA
	default:
		return kindUnknown
	}

	if checksum(s[1:star]) != hexDigit(s[star+1])<<4|hexDigit(s[star+2]) {
		return kindUnknown
	}
	return kind
}

// checksum is the XOR of every byte in payload.
func checksum(payload []byte) byte {
	var ck byte
	for _, c := range payload {
		ck ^= c
	}
	return ck
}

// hexDigit maps 0-9, A-F and a-f to their value. Anything else is 0.
func hexDigit(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func twoDigits(b []byte) uint8 {
	return hexDigit(b[0])*10 + hexDigit(b[1])
}

// fieldCursor steps through comma-separated fields. Each step lands just past
// the next comma and only succeeds while at least `need` bytes remain; once a
// step fails every later step fails too, so a truncated sentence degrades to
// zero values field by field.
type fieldCursor struct {
	rest []byte
	ok   bool
}

func newFieldCursor(body []byte) fieldCursor {
	return fieldCursor{rest: body, ok: true}
}

func (c *fieldCursor) next(need int) bool {
	if !c.ok {
		return false
	}
	i := bytes.IndexByte(c.rest, ',')
	if i < 0 || len(c.rest)-(i+1) < need {
		c.ok = false
		c.rest = nil
		return false
	}
	c.rest = c.rest[i+1:]
	return true
}

// leadingFloat parses the longest decimal literal at the start of b and
// ignores whatever follows. No literal yields 0.
func leadingFloat(b []byte) float64 {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	start := i
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	digits := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		i++
		for i < len(b) && b[i] >= '0' && b[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	end := i
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(b) && b[j] >= '0' && b[j] <= '9' {
			j++
			expDigits++
		}
		if expDigits > 0 {
			end = j
		}
	}
	// Out-of-range exponents still come back as ±Inf or 0.
	v, _ := strconv.ParseFloat(string(b[start:end]), 64)
	return v
}

// decodeRMC fills f from a $GPRMC body (sentence without "\r\n").
//
//	$GPRMC,hhmmss.sss,A,ddmm.mmmm,N,dddmm.mmmm,E,sss.s,ttt.t,ddmmyy,...*hh
func decodeRMC(f *Fix, body []byte) {
	c := newFieldCursor(body)

	if c.next(6) {
		f.Hour = twoDigits(c.rest[0:])
		f.Minute = twoDigits(c.rest[2:])
		f.Second = twoDigits(c.rest[4:])
	} else {
		f.Hour, f.Minute, f.Second = 0, 0, 0
	}

	active := false
	if c.next(1) {
		active = c.rest[0] == 'A'
	}

	if c.next(4) {
		if active {
			deg := float64(twoDigits(c.rest))
			f.Latitude = (deg + leadingFloat(c.rest[2:])/60.0) * degToRad
		}
	} else {
		f.Latitude = 0
	}
	if c.next(1) && c.rest[0] == 'S' {
		f.Latitude = -f.Latitude
	}

	if c.next(5) {
		if active {
			deg := float64(hexDigit(c.rest[0]))*100 + float64(twoDigits(c.rest[1:]))
			f.Longitude = (deg + leadingFloat(c.rest[3:])/60.0) * degToRad
		}
	} else {
		f.Longitude = 0
	}
	if c.next(1) && c.rest[0] == 'W' {
		f.Longitude = -f.Longitude
	}

	if c.next(2) {
		f.GroundSpeedKnots = leadingFloat(c.rest)
	} else {
		f.GroundSpeedKnots = 0
	}

	if c.next(2) {
		f.TrackAngle = leadingFloat(c.rest) * degToRad
	} else {
		f.TrackAngle = 0
	}

	if c.next(6) {
		f.Day = twoDigits(c.rest[0:])
		f.Month = twoDigits(c.rest[2:])
		f.YearSince2000 = twoDigits(c.rest[4:])
	}

	f.Flags |= HasRMC
}

// decodeGGA fills the altitude of f from a $GPGGA body.
//
//	$GPGGA,hhmmss.sss,ddmm.mmm,N,dddmm.mmm,E,q,nn,h.h,aaaa.a,M,ggg,M,,*hh
func decodeGGA(f *Fix, body []byte) {
	c := newFieldCursor(body)
	c.next(6)
	// time, lat, N/S, lon, E/W, quality, satellites, HDOP
	for i := 0; i < 8; i++ {
		c.next(1)
	}

	if c.ok {
		f.AltitudeMeters = leadingFloat(c.rest)
	} else {
		f.AltitudeMeters = 0
	}
	if c.next(1) && c.rest[0] != 'M' {
		f.AltitudeMeters = -1
	}

	f.Flags |= HasGGA
}

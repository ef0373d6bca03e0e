// Package gps turns the receiver's NMEA byte stream into navigation fixes.
//
// It is deliberately narrow:
// - Accept $GPRMC for time, date, position, ground speed and track
// - Accept $GPGGA for altitude
// - Publish a fix only once both sentences have landed in the same slot
package gps

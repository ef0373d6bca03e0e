// Package compass drives an HMC5883L-class three-axis magnetometer.
package compass

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"pocketwatch/internal/i2c"
	"pocketwatch/internal/tick"
)

const (
	// DefaultAddress is the fixed 7-bit bus address.
	DefaultAddress = 0x1E

	regConfigA = 0x00
	regConfigB = 0x01
	regMode    = 0x02
	regDataX   = 0x03

	// 1 sample averaged, 15 Hz output, no bias.
	configA = 0x10
	// Default gain.
	configB = 0x20
	// Continuous measurement.
	modeContinuous = 0x00
)

type regIO interface {
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// Compass polls the magnetometer every period ticks and keeps the last
// raw reading.
//
// Not safe for concurrent use.
type Compass struct {
	dev    regIO
	period tick.Tick

	last    tick.Tick
	x, y, z int16
	reads   uint64
}

func New(dev *i2c.Dev, period tick.Tick) (*Compass, error) {
	if dev == nil {
		return nil, errors.New("compass: dev is nil")
	}
	return newWithIO(dev, period), nil
}

func newWithIO(dev regIO, period tick.Tick) *Compass {
	return &Compass{dev: dev, period: period}
}

// Start configures continuous measurement.
func (c *Compass) Start(now tick.Tick) error {
	c.last = now
	for _, w := range [][2]byte{
		{regConfigA, configA},
		{regConfigB, configB},
		{regMode, modeContinuous},
	} {
		if err := c.dev.WriteReg(w[0], w[1]); err != nil {
			return errors.Wrapf(err, "compass: write reg 0x%02X", w[0])
		}
	}
	return nil
}

// Process reads a new sample once more than period ticks have passed since
// the previous one. A failed read keeps the previous sample.
func (c *Compass) Process(now tick.Tick) error {
	if tick.Since(now, c.last) <= c.period {
		return nil
	}
	c.last = now

	var buf [6]byte
	if err := c.dev.ReadReg(regDataX, buf[:]); err != nil {
		return errors.Wrap(err, "compass: read sample")
	}
	// Register order is X, Z, Y, each big-endian.
	c.x = int16(binary.BigEndian.Uint16(buf[0:2]))
	c.z = int16(binary.BigEndian.Uint16(buf[2:4]))
	c.y = int16(binary.BigEndian.Uint16(buf[4:6]))
	c.reads++
	return nil
}

// Heading is atan2(y, x) in radians, or 0 with no horizontal field.
func (c *Compass) Heading() float64 {
	if c.x == 0 && c.y == 0 {
		return 0
	}
	return math.Atan2(float64(c.y), float64(c.x))
}

func (c *Compass) X() int16 { return c.x }
func (c *Compass) Y() int16 { return c.y }
func (c *Compass) Z() int16 { return c.z }

// Reads counts successful samples.
func (c *Compass) Reads() uint64 { return c.reads }

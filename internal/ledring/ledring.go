// Package ledring shows dial frames on a WS2812 ring clocked over SPI.
package ledring

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"pocketwatch/internal/dial"
)

// Config selects the SPI port and output scaling.
type Config struct {
	// SPIPort is a periph port name; empty picks the first one.
	SPIPort string
	// Brightness scales every channel, 0..255. 0 means full.
	Brightness uint8
	// Freq is the NRZ bit clock.
	Freq physic.Frequency
}

type pixelWriter interface {
	Write(p []byte) (int, error)
}

// Ring is a dial.Strip.
type Ring struct {
	w          pixelWriter
	dev        *nrzled.Dev
	port       spi.PortCloser
	brightness uint8
	buf        [dial.LEDCount * 3]byte
}

// Open initialises the host drivers and claims the SPI port.
func Open(cfg Config) (*Ring, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, errors.Wrapf(err, "open spi port %q", cfg.SPIPort)
	}
	opts := nrzled.DefaultOpts
	opts.NumPixels = dial.LEDCount
	opts.Channels = 3
	if cfg.Freq != 0 {
		opts.Freq = cfg.Freq
	}
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "nrzled init")
	}
	log.Infof("led ring on spi %q (%d pixels)", cfg.SPIPort, dial.LEDCount)
	return &Ring{w: dev, dev: dev, port: port, brightness: cfg.Brightness}, nil
}

func newWithWriter(w pixelWriter, brightness uint8) *Ring {
	return &Ring{w: w, brightness: brightness}
}

// Show writes one frame, LED 0 first.
func (r *Ring) Show(f dial.Frame) error {
	encode(r.buf[:], f, r.brightness)
	if _, err := r.w.Write(r.buf[:]); err != nil {
		return errors.Wrap(err, "led ring write")
	}
	return nil
}

// Close blanks the ring and releases the port.
func (r *Ring) Close() error {
	if r == nil {
		return nil
	}
	_ = r.Show(dial.Frame{})
	if r.dev != nil {
		_ = r.dev.Halt()
	}
	if r.port != nil {
		return r.port.Close()
	}
	return nil
}

func encode(dst []byte, f dial.Frame, brightness uint8) {
	for i, c := range f {
		dst[3*i] = scale(c.R(), brightness)
		dst[3*i+1] = scale(c.G(), brightness)
		dst[3*i+2] = scale(c.B(), brightness)
	}
}

func scale(v, brightness uint8) uint8 {
	if brightness == 0 {
		return v
	}
	return uint8(uint16(v) * uint16(brightness) / 255)
}

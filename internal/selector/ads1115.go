package selector

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// ADSConfig locates the pot on an ADS1115.
type ADSConfig struct {
	// Bus is a periph I2C bus name; empty picks the first one.
	Bus     string
	Address uint16
	Channel int
	// FullScale is the pot supply voltage.
	FullScale physic.ElectricPotential
}

// ADS reads the pot through an ADS1115 and rescales to [0, 1024).
type ADS struct {
	bus       i2c.BusCloser
	pin       analog.PinADC
	fullScale physic.ElectricPotential
}

var channels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

func OpenADS1115(cfg ADSConfig) (*ADS, error) {
	if cfg.Channel < 0 || cfg.Channel >= len(channels) {
		return nil, errors.Errorf("selector: adc channel %d out of range", cfg.Channel)
	}
	if cfg.FullScale <= 0 {
		cfg.FullScale = 3300 * physic.MilliVolt
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", cfg.Bus)
	}
	opts := ads1x15.DefaultOpts
	if cfg.Address != 0 {
		opts.I2cAddress = cfg.Address
	}
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, errors.Wrap(err, "ads1115 init")
	}
	pin, err := adc.PinForChannel(channels[cfg.Channel], cfg.FullScale, 10*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		_ = bus.Close()
		return nil, errors.Wrap(err, "ads1115 channel")
	}
	return &ADS{bus: bus, pin: pin, fullScale: cfg.FullScale}, nil
}

func (a *ADS) Read() (int, error) {
	s, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	return scaleVoltage(s.V, a.fullScale), nil
}

func (a *ADS) Close() error {
	if a == nil {
		return nil
	}
	if a.pin != nil {
		_ = a.pin.Halt()
	}
	if a.bus != nil {
		return a.bus.Close()
	}
	return nil
}

func scaleVoltage(v, fullScale physic.ElectricPotential) int {
	if fullScale <= 0 || v <= 0 {
		return 0
	}
	raw := int(int64(v) * analogBins / int64(fullScale))
	if raw >= analogBins {
		raw = analogBins - 1
	}
	return raw
}

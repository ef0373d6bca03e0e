package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"pocketwatch/internal/compass"
	"pocketwatch/internal/config"
	"pocketwatch/internal/gpio"
	"pocketwatch/internal/i2c"
	"pocketwatch/internal/ledring"
	"pocketwatch/internal/selector"
	"pocketwatch/internal/stepper"
	"pocketwatch/internal/tick"
	"pocketwatch/internal/waypoint"
)

// Device openers. Tests swap these out.
var (
	openCompassFn = func(cfg config.CompassConfig) (*compass.Compass, io.Closer, error) {
		bus, err := i2c.OpenNumber(cfg.Bus)
		if err != nil {
			return nil, nil, err
		}
		c, err := compass.New(bus.Dev(compass.DefaultAddress), tick.FromDuration(cfg.Period))
		if err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		return c, bus, nil
	}

	openRingFn = func(cfg config.LEDConfig) (*ledring.Ring, error) {
		return ledring.Open(ledring.Config{
			SPIPort:    cfg.SPIPort,
			Brightness: cfg.Brightness,
			Freq:       physic.Frequency(cfg.FreqHz) * physic.Hertz,
		})
	}

	openStepperFn = func(cfg config.StepperConfig) (*stepper.Motor, []io.Closer, error) {
		m, lines, err := stepper.Open(stepper.Pins{A1: cfg.A1, A2: cfg.A2, B1: cfg.B1, B2: cfg.B2})
		if err != nil {
			return nil, nil, err
		}
		closers := make([]io.Closer, 0, len(lines))
		for _, l := range lines {
			closers = append(closers, l)
		}
		return m, closers, nil
	}

	openButtonFn = func(cfg config.WaypointConfig) (waypoint.Button, io.Closer, error) {
		line, err := gpio.OpenInput(cfg.ButtonPin, "pocketwatch-button", cfg.ActiveLow)
		if err != nil {
			return nil, nil, err
		}
		return gpio.Button{In: line}, line, nil
	}

	openHeartbeatFn = func(cfg config.BlinkConfig) (gpio.Output, io.Closer, error) {
		line, err := gpio.OpenOutput(cfg.Pin, 0, "pocketwatch-heartbeat")
		if err != nil {
			return nil, nil, err
		}
		return line, line, nil
	}

	openADCFn = func(cfg config.ADCConfig) (selector.Analog, io.Closer, error) {
		adc, err := selector.OpenADS1115(selector.ADSConfig{
			Bus:     cfg.Bus,
			Address: cfg.Address,
			Channel: cfg.Channel,
		})
		if err != nil {
			return nil, nil, err
		}
		return adc, adc, nil
	}
)

// countingStepper forwards steps to an optional motor and counts them, so
// the status page shows the cadence even without a motor attached.
type countingStepper struct {
	motor *stepper.Motor
	steps uint64
}

func (c *countingStepper) StepUp() error {
	c.steps++
	if c.motor == nil {
		return nil
	}
	return c.motor.StepUp()
}

// errorGate rate-limits repeated peripheral errors so a dead sensor polled
// every few milliseconds does not flood the log.
type errorGate struct {
	every time.Duration
	now   func() time.Time
	last  map[string]time.Time
	muted map[string]uint64
}

func newErrorGate(every time.Duration) *errorGate {
	return &errorGate{
		every: every,
		now:   time.Now,
		last:  map[string]time.Time{},
		muted: map[string]uint64{},
	}
}

// Warn logs err for component unless it logged recently.
func (g *errorGate) Warn(component string, err error) {
	if err == nil {
		return
	}
	now := g.now()
	if last, ok := g.last[component]; ok && now.Sub(last) < g.every {
		g.muted[component]++
		return
	}
	g.last[component] = now
	fields := log.Fields{"component": component, "err": err}
	if n := g.muted[component]; n > 0 {
		fields["suppressed"] = n
		g.muted[component] = 0
	}
	log.WithFields(fields).Warn("peripheral error")
}

func closeAll(closers []io.Closer) error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && firstErr == nil {
			firstErr = errors.WithStack(err)
		}
	}
	return firstErr
}

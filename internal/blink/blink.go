// Package blink runs the heartbeat LED.
package blink

import (
	"github.com/pkg/errors"

	"pocketwatch/internal/gpio"
	"pocketwatch/internal/tick"
)

// Blinker toggles an output with fixed on and off times. Transitions are
// scheduled from the previous transition, not from when Process ran, so the
// rhythm does not drift.
type Blinker struct {
	out     gpio.Output
	on, off tick.Tick

	prev  tick.Tick
	lit   bool
	flips uint64
}

func New(out gpio.Output, on, off tick.Tick) *Blinker {
	return &Blinker{out: out, on: on, off: off}
}

// Start turns the LED off and begins the off phase at now.
func (b *Blinker) Start(now tick.Tick) error {
	b.prev = now
	return b.set(false)
}

func (b *Blinker) Process(now tick.Tick) error {
	switch {
	case !b.lit && tick.Since(now, b.prev) >= b.off:
		b.prev += b.off
		return b.set(true)
	case b.lit && tick.Since(now, b.prev) >= b.on:
		b.prev += b.on
		return b.set(false)
	}
	return nil
}

func (b *Blinker) Lit() bool { return b.lit }

// Flips counts how many times the LED has been lit.
func (b *Blinker) Flips() uint64 { return b.flips }

func (b *Blinker) set(lit bool) error {
	v := 0
	if lit {
		v = 1
		b.flips++
	}
	b.lit = lit
	if err := b.out.SetValue(v); err != nil {
		return errors.Wrap(err, "heartbeat led")
	}
	return nil
}

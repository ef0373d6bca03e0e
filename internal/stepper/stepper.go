// Package stepper sequences a two-coil bipolar stepper in half steps.
package stepper

import (
	"github.com/pkg/errors"

	"pocketwatch/internal/gpio"
)

// Pins are the BCM GPIO numbers of the two coils.
type Pins struct {
	A1, A2 int
	B1, B2 int
}

type drive int8

const (
	off drive = iota
	up
	down
)

// halfSteps[s] is the (A, B) drive of state s.
//
//	A  DOWN OFF  UP
//	B
//	UP    7    0    1
//	OFF   6    x    2
//	DOWN  5    4    3
var halfSteps = [8][2]drive{
	{off, up},
	{up, up},
	{up, off},
	{up, down},
	{off, down},
	{down, down},
	{down, off},
	{down, up},
}

type coil struct {
	pin1, pin2 gpio.Output
}

// set drives the coil. Releasing both pins high is off.
func (c coil) set(d drive) error {
	var first, second gpio.Output
	var firstVal, secondVal int
	switch d {
	case up:
		first, firstVal, second, secondVal = c.pin2, 0, c.pin1, 1
	case down:
		first, firstVal, second, secondVal = c.pin1, 0, c.pin2, 1
	default:
		first, firstVal, second, secondVal = c.pin1, 1, c.pin2, 1
	}
	if err := first.SetValue(firstVal); err != nil {
		return err
	}
	return second.SetValue(secondVal)
}

// Motor is one stepper. Not safe for concurrent use.
type Motor struct {
	a, b  coil
	state uint8
}

func New(a1, a2, b1, b2 gpio.Output) *Motor {
	return &Motor{a: coil{a1, a2}, b: coil{b1, b2}}
}

// Open requests the four coil lines.
func Open(p Pins) (*Motor, []*gpio.Line, error) {
	var lines []*gpio.Line
	for _, pin := range []int{p.A1, p.A2, p.B1, p.B2} {
		l, err := gpio.OpenOutput(pin, 1, "pocketwatch-stepper")
		if err != nil {
			for _, open := range lines {
				_ = open.Close()
			}
			return nil, nil, errors.Wrapf(err, "stepper pin %d", pin)
		}
		lines = append(lines, l)
	}
	return New(lines[0], lines[1], lines[2], lines[3]), lines, nil
}

// Start energises state 0.
func (m *Motor) Start() error {
	return m.setState(0)
}

// Sleep releases both coils without forgetting the state.
func (m *Motor) Sleep() error {
	if err := m.a.set(off); err != nil {
		return err
	}
	return m.b.set(off)
}

// Wake re-applies the current state.
func (m *Motor) Wake() error {
	return m.setState(m.state)
}

func (m *Motor) StepUp() error {
	return m.setState((m.state + 1) & 0x7)
}

func (m *Motor) StepDown() error {
	return m.setState((m.state - 1) & 0x7)
}

func (m *Motor) State() uint8 {
	return m.state
}

func (m *Motor) setState(s uint8) error {
	m.state = s
	d := halfSteps[s&0x7]
	if err := m.a.set(d[0]); err != nil {
		return errors.Wrap(err, "stepper coil A")
	}
	if err := m.b.set(d[1]); err != nil {
		return errors.Wrap(err, "stepper coil B")
	}
	return nil
}

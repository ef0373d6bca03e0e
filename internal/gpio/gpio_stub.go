//go:build !linux

package gpio

import "github.com/pkg/errors"

// Line is unavailable off Linux.
type Line struct{}

func OpenOutput(pin, initial int, consumer string) (*Line, error) {
	return nil, errors.New("gpio: unsupported OS (need linux)")
}

func OpenInput(pin int, consumer string, activeLow bool) (*Line, error) {
	return nil, errors.New("gpio: unsupported OS (need linux)")
}

func (l *Line) SetValue(v int) error { return errors.New("gpio: unsupported OS") }
func (l *Line) Value() (int, error)  { return 0, errors.New("gpio: unsupported OS") }
func (l *Line) Close() error         { return nil }

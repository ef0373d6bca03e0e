//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// Line is a requested BCM GPIO line.
type Line struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// OpenOutput requests BCM pin as an output driven to initial.
func OpenOutput(pin, initial int, consumer string) (*Line, error) {
	return requestFn(pin, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer(consumer))
}

// OpenInput requests BCM pin as an input. activeLow inverts the reading so a
// button to ground still reads 1 when pressed.
func OpenInput(pin int, consumer string, activeLow bool) (*Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	return requestFn(pin, opts...)
}

var requestFn = requestLine

// requestLine finds "GPIO<pin>" on the first chip that has it. Pi 5 kernels
// move the header lines between gpiochip0 and gpiochip4.
func requestLine(pin int, opts ...gpiocdev.LineReqOption) (*Line, error) {
	if pin < 0 {
		return nil, errors.Errorf("gpio: invalid pin %d", pin)
	}
	name := fmt.Sprintf("GPIO%d", pin)

	candidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			candidates = append(candidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, path := range candidates {
		chip, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(name)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &Line{chip: chip, line: line, pin: pin}, nil
	}
	return nil, errors.Errorf("gpio: line %q not found (or busy)", name)
}

func (l *Line) SetValue(v int) error {
	if l == nil || l.line == nil {
		return errors.New("gpio: line not open")
	}
	return errors.Wrapf(l.line.SetValue(v), "gpio%d set", l.pin)
}

func (l *Line) Value() (int, error) {
	if l == nil || l.line == nil {
		return 0, errors.New("gpio: line not open")
	}
	v, err := l.line.Value()
	if err != nil {
		return 0, errors.Wrapf(err, "gpio%d read", l.pin)
	}
	return v, nil
}

func (l *Line) Close() error {
	if l == nil || l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	if l.chip != nil {
		_ = l.chip.Close()
		l.chip = nil
	}
	return err
}

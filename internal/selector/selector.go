// Package selector debounces the mode potentiometer into a choice.
package selector

import (
	"github.com/pkg/errors"

	"pocketwatch/internal/tick"
)

// analogBins is the resolution of a reading.
const analogBins = 1024

// Analog returns a reading in [0, 1024).
type Analog interface {
	Read() (int, error)
}

// Fixed is an Analog that always reads the same value.
type Fixed int

func (f Fixed) Read() (int, error) { return int(f), nil }

// Config sets the detents and timing.
type Config struct {
	Choices uint8
	// Ratio of the travel left unused by the detents, 0..1.
	Ratio float64

	// Refresh is the sampling period and Settle how long a new reading must
	// hold before it is adopted.
	Refresh tick.Tick
	Settle  tick.Tick
}

// Selector samples the pot every Refresh ticks and adopts a choice once it
// has been stable for Settle.
//
// Not safe for concurrent use.
type Selector struct {
	cfg  Config
	src  Analog
	bins int

	prevRead   tick.Tick
	prevChange tick.Tick
	input      uint8
	choice     uint8
}

func New(cfg Config, src Analog) (*Selector, error) {
	if src == nil {
		return nil, errors.New("selector: nil source")
	}
	if cfg.Choices == 0 {
		return nil, errors.New("selector: choices must be > 0")
	}
	bins := int((1 - cfg.Ratio) * analogBins / float64(cfg.Choices))
	if bins <= 0 {
		bins = 1
	}
	return &Selector{cfg: cfg, src: src, bins: bins}, nil
}

// Start adopts the current reading immediately.
func (s *Selector) Start(now tick.Tick) error {
	s.prevRead = now
	s.prevChange = now
	c, err := s.read()
	if err != nil {
		return err
	}
	s.input = c
	s.choice = c
	return nil
}

func (s *Selector) Process(now tick.Tick) error {
	if tick.Since(now, s.prevRead) < s.cfg.Refresh {
		return nil
	}
	s.prevRead = now
	c, err := s.read()
	if err != nil {
		return err
	}
	if c != s.input {
		s.input = c
		s.prevChange = now
	} else if tick.Since(now, s.prevChange) >= s.cfg.Settle {
		s.choice = s.input
	}
	return nil
}

// Choice is the debounced selection. It can exceed Choices-1 near the ends
// of travel; callers treat such values as unsupported.
func (s *Selector) Choice() uint8 {
	return s.choice
}

// BinsPerChoice is the width of one detent in raw counts.
func (s *Selector) BinsPerChoice() int {
	return s.bins
}

// read folds readings above mid-scale back toward zero so both ends of the
// pot land on low choices.
func (s *Selector) read() (uint8, error) {
	v, err := s.src.Read()
	if err != nil {
		return 0, errors.Wrap(err, "selector read")
	}
	if v >= analogBins/2 {
		v -= analogBins
		if v < 0 {
			v = -v
		}
	}
	return uint8(v / s.bins), nil
}

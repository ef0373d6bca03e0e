package dial

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/tick"
)

// Strip shows a frame on the LED ring.
type Strip interface {
	Show(f Frame) error
}

// Stepper drives the physical hand one step at a time.
type Stepper interface {
	StepUp() error
}

// Config sets the two cadences, in ticks.
type Config struct {
	// Refresh is how often hands are recomputed and rendered.
	Refresh tick.Tick
	// Motion is how often the stepper advances.
	Motion tick.Tick
}

// Engine recomputes the hands on one cadence and pulses the stepper on
// another. Either peripheral may be nil.
//
// The stepper advances every Motion ticks regardless of the computed hands.
//
// Not safe for concurrent use.
type Engine struct {
	cfg     Config
	strip   Strip
	stepper Stepper

	// OnHands, when set, sees every rendered frame.
	OnHands func(Snapshot, Hands, Frame)

	prevRefresh tick.Tick
	prevMotion  tick.Tick

	last     Hands
	lastOK   bool
	rendered uint64
}

func NewEngine(cfg Config, strip Strip, stepper Stepper) *Engine {
	if cfg.Refresh == 0 {
		cfg.Refresh = 1
	}
	if cfg.Motion == 0 {
		cfg.Motion = 1
	}
	return &Engine{cfg: cfg, strip: strip, stepper: stepper}
}

// Start anchors both cadences at now and blanks the ring.
func (e *Engine) Start(now tick.Tick) error {
	e.prevRefresh = now
	e.prevMotion = now
	if e.strip != nil {
		if err := e.strip.Show(Frame{}); err != nil {
			return errors.Wrap(err, "clear ring")
		}
	}
	return nil
}

// Process runs whichever cadences are due. Peripheral errors are returned
// after both cadences had their turn.
func (e *Engine) Process(now tick.Tick, s Snapshot) error {
	var firstErr error

	if tick.Since(now, e.prevRefresh) >= e.cfg.Refresh {
		e.prevRefresh += e.cfg.Refresh
		if err := e.refresh(s); err != nil {
			firstErr = err
		}
	}

	if tick.Since(now, e.prevMotion) >= e.cfg.Motion {
		e.prevMotion = now
		if e.stepper != nil {
			if err := e.stepper.StepUp(); err != nil && firstErr == nil {
				firstErr = errors.Wrap(err, "step hand")
			}
		}
	}
	return firstErr
}

// Last returns the most recently rendered hands.
func (e *Engine) Last() (Hands, bool) {
	return e.last, e.lastOK
}

// Rendered counts frames pushed so far.
func (e *Engine) Rendered() uint64 {
	return e.rendered
}

func (e *Engine) refresh(s Snapshot) error {
	h, ok := Compute(s)
	if !ok {
		log.WithField("mode", uint8(s.Mode)).Debug("dial: unsupported mode")
		return nil
	}

	log.WithFields(log.Fields{
		"mode":   s.Mode.String(),
		"big":    h.Big,
		"medium": h.Medium,
		"small":  h.Small,
	}).Debug("dial hands")

	f := Render(h)
	e.last, e.lastOK = h, true
	e.rendered++
	if e.OnHands != nil {
		e.OnHands(s, h, f)
	}
	if e.strip == nil {
		return nil
	}
	if err := e.strip.Show(f); err != nil {
		return errors.Wrap(err, "show ring")
	}
	return nil
}

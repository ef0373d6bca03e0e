package replay

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play hands every chunk to cb, keeping the recorded gaps between them.
// START markers reset the origin.
//
// speed: 1.0 is real time, 2.0 halves every wait.
func Play(records []Record, speed float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speed <= 0 {
		return errors.New("speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if r.Chunk == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait > 0 {
					sleeper.Sleep(time.Duration(float64(wait) / speed))
				}
			}
			if err := cb(r.Chunk); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}

// Stream plays records into an io.ReadCloser so a capture can stand in for
// the serial port. Close stops playback.
type Stream struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
}

func NewStream(records []Record, speed float64, loop bool) *Stream {
	pr, pw := io.Pipe()
	s := &Stream{pr: pr, pw: pw, done: make(chan struct{})}
	go func() {
		err := Play(records, speed, loop, stopSleeper{s.done}, func(b []byte) error {
			select {
			case <-s.done:
				return io.ErrClosedPipe
			default:
			}
			_, err := pw.Write(b)
			return err
		})
		if err == nil {
			err = io.EOF
		}
		_ = pw.CloseWithError(err)
	}()
	return s
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *Stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.pr.Close()
}

// stopSleeper returns early once done is closed.
type stopSleeper struct {
	done <-chan struct{}
}

func (s stopSleeper) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
	case <-t.C:
	}
}

package sim

import (
	"io"
	"sync"
	"time"
)

// Receiver is an io.ReadCloser producing one RMC+GGA burst per Interval,
// paced against the wall clock like a real module on a serial line.
type Receiver struct {
	path     Path
	interval time.Duration

	now   func() time.Time
	start time.Time
	next  time.Time

	pending []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewReceiver(path Path, interval time.Duration) *Receiver {
	return newReceiverWith(path, interval, time.Now)
}

func newReceiverWith(path Path, interval time.Duration, now func() time.Time) *Receiver {
	if interval <= 0 {
		interval = time.Second
	}
	start := now()
	return &Receiver{
		path:     path,
		interval: interval,
		now:      now,
		start:    start,
		next:     start,
		done:     make(chan struct{}),
	}
}

// Read blocks until the next burst is due, then hands it out.
func (r *Receiver) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if err := r.wait(); err != nil {
			return 0, err
		}
		r.burst()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *Receiver) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

func (r *Receiver) wait() error {
	select {
	case <-r.done:
		return io.EOF
	default:
	}
	d := r.next.Sub(r.now())
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.done:
		return io.EOF
	case <-t.C:
		return nil
	}
}

func (r *Receiver) burst() {
	at := r.next
	st := r.path.StateAt(at.Sub(r.start))
	for _, s := range Sentences(st, at) {
		r.pending = append(r.pending, s...)
	}
	r.next = r.next.Add(r.interval)
}

package gps

import (
	"context"
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// ByteSource hands over whatever bytes have already arrived.
type ByteSource interface {
	// TryRead copies buffered bytes into p without waiting and returns how
	// many were copied (0 when nothing is pending).
	TryRead(p []byte) int
}

// Pump is a bounded receive buffer between a blocking reader and the
// cooperative scheduler, playing the role of a UART FIFO. When it is full,
// new bytes are dropped and counted as overruns.
type Pump struct {
	ch       chan byte
	overruns atomic.Uint64
	received atomic.Uint64
}

func NewPump(size int) *Pump {
	if size <= 0 {
		size = 1024
	}
	return &Pump{ch: make(chan byte, size)}
}

// Push queues b without blocking.
func (p *Pump) Push(b []byte) {
	for _, c := range b {
		select {
		case p.ch <- c:
			p.received.Add(1)
		default:
			p.overruns.Add(1)
		}
	}
}

func (p *Pump) TryRead(dst []byte) int {
	n := 0
	for n < len(dst) {
		select {
		case c := <-p.ch:
			dst[n] = c
			n++
		default:
			return n
		}
	}
	return n
}

func (p *Pump) Overruns() uint64 { return p.overruns.Load() }
func (p *Pump) Received() uint64 { return p.received.Load() }

// Chunk observes every chunk read from the link before it is queued.
type Chunk func(b []byte)

// Run copies r into the pump until r fails or ctx ends. It is meant to run
// on its own goroutine; the read itself may block.
func (p *Pump) Run(ctx context.Context, r io.Reader, tap Chunk) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			if tap != nil {
				tap(buf[:n])
			}
			p.Push(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				log.Debug("gps: byte source reached EOF")
			}
			return err
		}
	}
}

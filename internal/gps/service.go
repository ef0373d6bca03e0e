package gps

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config controls the receiver link.
//
// Device may be empty to auto-detect. The receiver is expected to already
// emit RMC and GGA at 1 Hz; no configuration sentences are sent to it.
type Config struct {
	Enable bool

	Device string
	Baud   int

	// BufferSize is the receive FIFO depth in bytes.
	BufferSize int

	// Reconnect reopens the link after an open failure or when the stream
	// stops.
	Reconnect bool
}

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Opener returns the byte stream the link reads from.
type Opener func() (io.ReadCloser, error)

// LinkStatus is a UI-friendly view of the link.
type LinkStatus struct {
	Enabled   bool   `json:"enabled"`
	Open      bool   `json:"open"`
	Device    string `json:"device,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	Received  uint64 `json:"received_bytes"`
	Overruns  uint64 `json:"overrun_bytes"`
	Opens     uint64 `json:"opens"`
	LastError string `json:"last_error,omitempty"`
}

// Service keeps a receiver stream flowing into a Pump. The parser never sees
// the stream itself, only the pump, so a stalled device cannot block the
// scheduler.
type Service struct {
	cfg  Config
	open Opener
	pump *Pump

	tap Chunk

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // LinkStatus

	mu     sync.Mutex
	closer io.Closer
	opens  uint64
}

var openSerialFn = func(device string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
}

// SerialOpener opens device at baud, auto-detecting the device when empty.
func SerialOpener(device string, baud int) Opener {
	return func() (io.ReadCloser, error) {
		dev := strings.TrimSpace(device)
		if dev == "" {
			dev = autoDetectDevice()
			if dev == "" {
				return nil, errors.New("gps auto-detect failed: no serial device found")
			}
		}
		if baud == 0 {
			baud = 9600
		}
		port, err := openSerialFn(dev, baud)
		if err != nil {
			return nil, errors.Wrapf(err, "gps open failed device=%s baud=%d", dev, baud)
		}
		log.Infof("gps serial opened device=%s baud=%d", dev, baud)
		return port, nil
	}
}

func New(cfg Config, open Opener) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if open == nil {
		open = SerialOpener(cfg.Device, cfg.Baud)
	}
	s := &Service{cfg: cfg, open: open, pump: NewPump(cfg.BufferSize)}
	s.last.Store(LinkStatus{Enabled: cfg.Enable, Device: cfg.Device, Baud: cfg.Baud})
	return s
}

// Source is what the Parser should drain.
func (s *Service) Source() ByteSource {
	return s.pump
}

// Tap registers a callback that sees every chunk read from the device, e.g.
// a capture recorder. Must be called before Start.
func (s *Service) Tap(fn Chunk) {
	s.tap = fn
}

// Start opens the link and keeps it flowing. With Reconnect set, a failed
// open or a stream that stops is retried with backoff until ctx ends; the
// first open error is still returned so the caller can log it.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return errors.New("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	rc, err := s.open()
	if err != nil {
		s.setErrorLocked(err.Error())
		if !s.cfg.Reconnect {
			return err
		}
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if rc != nil {
		s.attachLocked(rc)
	}

	s.wg.Add(1)
	go s.run(childCtx, rc)
	return err
}

func (s *Service) run(ctx context.Context, rc io.ReadCloser) {
	defer s.wg.Done()

	backoff := minBackoff
	for {
		if rc != nil {
			// Reset backoff after a successful open.
			backoff = minBackoff
			err := s.pump.Run(ctx, rc, s.tap)
			_ = rc.Close()
			s.detach(ctx, err)
			rc = nil
		}
		if ctx.Err() != nil || !s.cfg.Reconnect {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}

		next, err := s.open()
		if err != nil {
			s.setError(err.Error())
			continue
		}
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			_ = next.Close()
			return
		}
		s.attachLocked(next)
		s.mu.Unlock()
		rc = next
	}
}

func (s *Service) attachLocked(rc io.ReadCloser) {
	s.closer = rc
	s.opens++
	cur := s.Status()
	cur.Open = true
	cur.Opens = s.opens
	cur.LastError = ""
	s.last.Store(cur)
}

// detach runs on the run goroutine, the only writer of s.closer besides Close.
func (s *Service) detach(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closer = nil
	cur := s.Status()
	cur.Open = false
	if err != nil && ctx.Err() == nil {
		cur.LastError = fmt.Sprintf("gps read stopped: %v", err)
		log.WithField("err", err).Warn("gps read stopped")
	}
	s.last.Store(cur)
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	// Cancel under the lock so run cannot attach a fresh stream after this.
	if cancel != nil {
		cancel()
	}
	s.mu.Unlock()

	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Status() LinkStatus {
	if s == nil {
		return LinkStatus{}
	}
	v := s.last.Load()
	if v == nil {
		return LinkStatus{}
	}
	st := v.(LinkStatus)
	st.Received = s.pump.Received()
	st.Overruns = s.pump.Overruns()
	return st
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

func (s *Service) setErrorLocked(msg string) {
	cur := s.Status()
	cur.LastError = msg
	s.last.Store(cur)
}

// autoDetectDevice picks the first receiver-looking TTY that exists.
func autoDetectDevice() string {
	candidates := []string{"/dev/serial0", "/dev/ttyAMA0", "/dev/ttyS0"}
	for i := 0; i < 4; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 4; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

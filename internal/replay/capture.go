// Package replay records the raw receiver byte stream and plays it back.
//
// Capture format, one record per line:
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" resets the origin; later times are relative to it.
//   - Data lines are <t_ns>,<hex>: nanoseconds since START and the chunk
//     exactly as it was read from the serial port.
package replay

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Record is one chunk. A nil Chunk marks START.
type Record struct {
	At    time.Duration
	Chunk []byte
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Load reads a whole capture file.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture %s", path)
	}
	defer f.Close()
	recs, err := NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read capture %s", path)
	}
	return recs, nil
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, errors.Errorf("invalid capture line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.ReplaceAll(strings.TrimSpace(line[comma+1:]), " ", "")
		if tsStr == "" || hexStr == "" {
			return nil, errors.Errorf("invalid capture line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid capture timestamp %q", tsStr)
		}
		if tsNs < 0 {
			return nil, errors.Errorf("invalid capture timestamp (negative): %d", tsNs)
		}
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, errors.Wrap(err, "invalid capture hex payload")
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Chunk: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Writer appends chunks to a capture file. It is safe to call Record from
// the serial goroutine while another goroutine flushes.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	now    func() time.Time
	closed bool
	chunks uint64
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create capture %s", path)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now(), now: time.Now}, nil
}

// WriteChunk stamps b with its offset from the writer's start.
func (ww *Writer) WriteChunk(at time.Time, b []byte) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("capture writer is closed")
	}
	if len(b) == 0 {
		return nil
	}
	d := at.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	if _, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(b)); err != nil {
		return err
	}
	ww.chunks++
	return nil
}

// Record is a tap for the serial link. Errors are logged, not returned.
func (ww *Writer) Record(b []byte) {
	if err := ww.WriteChunk(ww.now(), b); err != nil {
		log.WithField("err", err).Warn("capture write failed")
	}
}

func (ww *Writer) Chunks() uint64 {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	return ww.chunks
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

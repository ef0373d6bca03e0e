// Package waypoint persists the two saved return points and recognises the
// button gestures that overwrite them.
package waypoint

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Byte offsets of the four slots. Each slot is one little-endian float64.
const (
	OffsetFastLat int64 = 0
	OffsetFastLon int64 = 8
	OffsetSlowLat int64 = 16
	OffsetSlowLon int64 = 24

	// Size is the whole image: no header, no checksum.
	Size = 32

	slotWidth = 8
)

// Store is byte-addressable non-volatile memory.
type Store interface {
	io.ReaderAt
	io.WriterAt
}

// ReadWaypoint returns the float64 whose bytes start at off.
func ReadWaypoint(s Store, off int64) (float64, error) {
	var b [slotWidth]byte
	if _, err := s.ReadAt(b[:], off); err != nil {
		return 0, errors.Wrapf(err, "waypoint read off=%d", off)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

// WriteWaypoint stores v at off. The bit pattern is kept as is, NaN payloads
// and negative zero included.
func WriteWaypoint(s Store, off int64, v float64) error {
	var b [slotWidth]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	if _, err := s.WriteAt(b[:], off); err != nil {
		return errors.Wrapf(err, "waypoint write off=%d", off)
	}
	return nil
}

// FileStore keeps the image in a regular file and syncs after every write.
type FileStore struct {
	f *os.File
}

// OpenFile opens path, creating a zero-filled image when it does not exist
// and extending a short file to Size.
func OpenFile(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open waypoint store %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "stat waypoint store %s", path)
	}
	if fi.Size() < Size {
		if err := f.Truncate(Size); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "size waypoint store %s", path)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "sync waypoint store %s", path)
		}
	}
	return &FileStore{f: f}, nil
}

func (s *FileStore) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *FileStore) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, s.f.Sync()
}

func (s *FileStore) Close() error {
	if s == nil || s.f == nil {
		return nil
	}
	return s.f.Close()
}

// MemStore is a Store in RAM.
type MemStore struct {
	mu  sync.Mutex
	buf [Size]byte
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off > Size {
		return 0, errors.Errorf("offset %d out of range", off)
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > Size {
		return 0, errors.Errorf("write of %d bytes at %d exceeds store", len(p), off)
	}
	return copy(m.buf[off:], p), nil
}

// Bytes returns a copy of the image.
func (m *MemStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, Size)
	copy(out, m.buf[:])
	return out
}

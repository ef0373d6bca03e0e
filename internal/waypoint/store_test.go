package waypoint

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var awkwardValues = []float64{
	0,
	math.Copysign(0, -1),
	0.69345851663,
	-2.15131453045,
	math.Inf(1),
	math.Inf(-1),
	math.SmallestNonzeroFloat64,
	math.MaxFloat64,
	math.Float64frombits(0x7ff8000000000123),
	math.Float64frombits(0xfff0000000000001),
}

func TestMemStore_RoundTripIsBitExact(t *testing.T) {
	s := NewMemStore()
	for _, v := range awkwardValues {
		for _, off := range []int64{OffsetFastLat, OffsetFastLon, OffsetSlowLat, OffsetSlowLon} {
			require.NoError(t, WriteWaypoint(s, off, v))
			got, err := ReadWaypoint(s, off)
			require.NoError(t, err)
			assert.Equal(t, math.Float64bits(v), math.Float64bits(got), "off=%d v=%v", off, v)
		}
	}
}

func TestMemStore_LayoutIsLittleEndian(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, WriteWaypoint(s, OffsetSlowLat, 1.0))
	b := s.Bytes()
	// 1.0 = 0x3FF0000000000000
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}, b[16:24])
	assert.Equal(t, make([]byte, 16), b[:16])
}

func TestMemStore_RejectsOutOfRange(t *testing.T) {
	s := NewMemStore()
	assert.Error(t, WriteWaypoint(s, 30, 1))
	_, err := ReadWaypoint(s, 28)
	assert.Error(t, err)
}

func TestFileStore_CreatesZeroImageAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waypoints.bin")

	s, err := OpenFile(path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, Size), raw)

	for i, v := range awkwardValues[:4] {
		require.NoError(t, WriteWaypoint(s, int64(i*8), v))
	}
	require.NoError(t, s.Close())

	s, err = OpenFile(path)
	require.NoError(t, err)
	defer s.Close()
	for i, v := range awkwardValues[:4] {
		got, err := ReadWaypoint(s, int64(i*8))
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(v), math.Float64bits(got))
	}
}

func TestFileStore_ExtendsShortImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(Size), fi.Size())

	v, err := ReadWaypoint(s, OffsetSlowLon)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

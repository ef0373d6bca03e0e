package journal

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketwatch/internal/waypoint"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTemp(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	step := 0
	j.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	home := waypoint.Coord{Lat: 39.7 * math.Pi / 180, Lon: -104.9 * math.Pi / 180}
	first, err := j.Append(waypoint.SlotFast, home)
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)

	second, err := j.Append(waypoint.SlotSlow, waypoint.Coord{})
	require.NoError(t, err)

	recs, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID)
	assert.Equal(t, "slow", recs[0].Slot)
	assert.Equal(t, "fast", recs[1].Slot)
	assert.InDelta(t, 39.7, recs[1].LatDeg, 1e-9)
	assert.InDelta(t, -104.9, recs[1].LonDeg, 1e-9)
	assert.True(t, recs[1].CapturedAt.Equal(base.Add(time.Minute)))
	assert.True(t, recs[1].Finite)

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppend_NonFiniteStoredAsNull(t *testing.T) {
	j := openTemp(t)
	rec, err := j.Append(waypoint.SlotFast, waypoint.Coord{Lat: math.NaN(), Lon: 0.5})
	require.NoError(t, err)
	assert.False(t, rec.Finite)
	_, err = j.Append(waypoint.SlotSlow, waypoint.Coord{Lat: 0.5, Lon: math.Inf(-1)})
	require.NoError(t, err)

	recs, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, c := range recs {
		assert.False(t, c.Finite, c.Slot)
	}
	fast := recs[1]
	assert.Equal(t, "fast", fast.Slot)
	assert.Equal(t, 0.0, fast.LatDeg)
	assert.InDelta(t, 0.5*180/math.Pi, fast.LonDeg, 1e-9)
}

func TestRecent_Limit(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 5; i++ {
		_, err := j.Append(waypoint.SlotFast, waypoint.Coord{})
		require.NoError(t, err)
	}
	recs, err := j.Recent(3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Append(waypoint.SlotSlow, waypoint.Coord{Lat: 0.1})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

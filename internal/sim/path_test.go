package sim

import (
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_StaysNearCenter(t *testing.T) {
	w := Walk{CenterLatDeg: 45, CenterLonDeg: -122, RadiusM: 1000, Period: time.Minute}
	radiusDeg := 1000 / metersPerDegLat
	for s := 0; s < 60; s++ {
		st := w.StateAt(time.Duration(s) * time.Second)
		assert.LessOrEqual(t, math.Abs(st.LatDeg-45), radiusDeg*0.51)
		assert.LessOrEqual(t, math.Abs(st.LonDeg+122), radiusDeg/math.Cos(45*math.Pi/180)*1.01)
		assert.GreaterOrEqual(t, st.TrackDeg, 0.0)
		assert.Less(t, st.TrackDeg, 360.0)
		assert.Greater(t, st.GroundKt, 0.0)
	}
}

func TestWalk_Deterministic(t *testing.T) {
	w := Walk{CenterLatDeg: 1, CenterLonDeg: 2}
	assert.Equal(t, w.StateAt(42*time.Second), w.StateAt(42*time.Second))
	assert.Equal(t, w.StateAt(0), w.StateAt(w.period()))
}

func TestRoute_InterpolatesAcrossTrackWrap(t *testing.T) {
	script, err := ParseRouteYAML([]byte(`
version: 1
keyframes:
  - t: 0s
    lat_deg: 0
    lon_deg: 0
    alt_m: 0
    ground_kt: 100
    track_deg: 350
  - t: 10s
    lat_deg: 10
    lon_deg: 20
    alt_m: 1000
    ground_kt: 200
    track_deg: 10
`))
	require.NoError(t, err)
	r, err := NewRoute(script)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, r.Duration())

	st := r.StateAt(5 * time.Second)
	assert.Equal(t, 0.0, st.TrackDeg)
	assert.Equal(t, 5.0, st.LatDeg)
	assert.Equal(t, 10.0, st.LonDeg)
	assert.Equal(t, 500.0, st.AltMeters)
	assert.Equal(t, 150.0, st.GroundKt)

	// Without loop the route parks on the last keyframe.
	assert.Equal(t, 10.0, r.StateAt(time.Hour).LatDeg)
}

func TestRoute_Loop(t *testing.T) {
	r, err := NewRoute(RouteScript{Loop: true, Keyframes: []Keyframe{
		{T: 0, LatDeg: 0},
		{T: 10 * time.Second, LatDeg: 10},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.StateAt(12*time.Second).LatDeg)
}

func TestNewRoute_Validation(t *testing.T) {
	_, err := NewRoute(RouteScript{})
	assert.Error(t, err)

	_, err = NewRoute(RouteScript{Version: 2, Keyframes: []Keyframe{{}}})
	assert.Error(t, err)

	_, err = NewRoute(RouteScript{Keyframes: []Keyframe{{T: time.Second}, {T: 0}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sorted")
}

func TestReceiver_EmitsBurstsAndStopsOnClose(t *testing.T) {
	cur := noon
	r := newReceiverWith(Static{LatDeg: 1, LonDeg: 2}, time.Second, func() time.Time { return cur })

	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	require.NoError(t, err)
	out := string(buf[:n])
	assert.True(t, strings.HasPrefix(out, "$GPRMC,123456.00,A,"))
	assert.Contains(t, out, "$GPGGA,123456.00,")

	// The next burst is a second later and the clock has not moved.
	require.NoError(t, r.Close())
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiver_SmallReadsDrainBurst(t *testing.T) {
	cur := noon
	r := newReceiverWith(Static{}, time.Second, func() time.Time { return cur })

	var got []byte
	small := make([]byte, 7)
	for !strings.Contains(string(got), "$GPGGA") || !strings.HasSuffix(string(got), "\r\n") || strings.Count(string(got), "\r\n") < 2 {
		n, err := r.Read(small)
		require.NoError(t, err)
		got = append(got, small[:n]...)
	}
	assert.Equal(t, 2, strings.Count(string(got), "$"))
}

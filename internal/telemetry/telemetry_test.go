package telemetry

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketwatch/internal/dial"
	"pocketwatch/internal/gps"
	"pocketwatch/internal/waypoint"
)

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeSender struct {
	msgs []message
}

func (f *fakeSender) send(topic string, retained bool, payload []byte) {
	f.msgs = append(f.msgs, message{topic: topic, retained: retained, payload: payload})
}

func TestHands_PublishesFrame(t *testing.T) {
	out := &fakeSender{}
	p := newPublisher("watch/", out)

	s := dial.Snapshot{
		Mode: dial.ModeTravel,
		Fix: gps.Fix{
			YearSince2000: 24, Month: 5, Day: 1, Hour: 12, Minute: 3, Second: 4,
			Latitude:         math.Pi / 4,
			GroundSpeedKnots: 12.5,
			TrackAngle:       math.Pi,
			AltitudeMeters:   100,
			Flags:            gps.HasRMC | gps.HasGGA,
		},
	}
	p.Hands(s, dial.Hands{Big: 10, Medium: 20, Small: 30}, dial.Frame{})

	require.Len(t, out.msgs, 1)
	msg := out.msgs[0]
	assert.Equal(t, "watch/hands", msg.topic)
	assert.False(t, msg.retained)

	var got Frame
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "travel", got.Mode)
	assert.Equal(t, 10, got.Big)
	assert.Equal(t, 20, got.Medium)
	assert.Equal(t, 30, got.Small)
	assert.True(t, got.Fix.Complete)
	assert.Equal(t, "2024-05-01T12:03:04Z", got.Fix.UTC)
	assert.InDelta(t, 45.0, got.Fix.LatDeg, 1e-9)
	assert.InDelta(t, 180.0, got.Fix.TrackDeg, 1e-9)
	assert.Equal(t, uint64(1), p.Sent())
}

func TestCommit_Retained(t *testing.T) {
	out := &fakeSender{}
	p := newPublisher("", out)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	p.Commit(waypoint.Commit{Slot: waypoint.SlotSlow, Coord: waypoint.Coord{Lon: -math.Pi / 2}})

	require.Len(t, out.msgs, 1)
	assert.Equal(t, "pocketwatch/waypoint/slow", out.msgs[0].topic)
	assert.True(t, out.msgs[0].retained)

	var got Waypoint
	require.NoError(t, json.Unmarshal(out.msgs[0].payload, &got))
	assert.Equal(t, "slow", got.Slot)
	assert.InDelta(t, -90.0, got.LonDeg, 1e-9)
	assert.True(t, got.SavedAt.Equal(at))
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Config{})
	require.Error(t, err)
}

func TestNonFiniteValuesStillPublish(t *testing.T) {
	out := &fakeSender{}
	p := newPublisher("", out)

	s := dial.Snapshot{Fix: gps.Fix{
		Latitude:       math.Pi / 4,
		AltitudeMeters: math.Inf(1),
		Flags:          gps.HasRMC | gps.HasGGA,
	}}
	p.Hands(s, dial.Hands{}, dial.Frame{})
	p.Commit(waypoint.Commit{Slot: waypoint.SlotFast, Coord: waypoint.Coord{Lat: math.NaN(), Lon: math.Pi}})

	require.Len(t, out.msgs, 2)
	assert.Equal(t, uint64(2), p.Sent())
	assert.Equal(t, uint64(0), p.Failed())

	var frame Frame
	require.NoError(t, json.Unmarshal(out.msgs[0].payload, &frame))
	assert.False(t, frame.Fix.Finite)
	assert.Equal(t, 0.0, frame.Fix.AltM)
	assert.InDelta(t, 45.0, frame.Fix.LatDeg, 1e-9)

	var wp Waypoint
	require.NoError(t, json.Unmarshal(out.msgs[1].payload, &wp))
	assert.False(t, wp.Finite)
	assert.Equal(t, 0.0, wp.LatDeg)
	assert.InDelta(t, 180.0, wp.LonDeg, 1e-9)
}

func TestPublish_MarshalFailureCounted(t *testing.T) {
	out := &fakeSender{}
	p := newPublisher("", out)
	p.publish("pocketwatch/bad", false, func() {})
	assert.Empty(t, out.msgs)
	assert.Equal(t, uint64(1), p.Failed())
	assert.Equal(t, uint64(0), p.Sent())
}

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketwatch/internal/replay"
	"pocketwatch/internal/sim"
)

var summaryState = sim.State{LatDeg: 47.5, LonDeg: -122.25, AltMeters: 120}

func burst(at time.Time) []byte {
	return []byte(strings.Join(sim.Sentences(summaryState, at), ""))
}

func TestSentenceKind(t *testing.T) {
	assert.Equal(t, "GPRMC", sentenceKind([]byte("$GPRMC,1,2*00\r\n")))
	assert.Equal(t, "GPTXT", sentenceKind([]byte("$GPTXT*00\r\n")))
	assert.Equal(t, "", sentenceKind([]byte("GPRMC,1\r\n")))
	assert.Equal(t, "", sentenceKind([]byte("$,\r\n")))
}

func TestSummarizeCapture(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b1 := burst(t0)
	b2 := burst(t0.Add(time.Second))
	split := len(b2) / 2

	recs := []replay.Record{
		{At: 0},
		{At: 0, Chunk: b1},
		{At: time.Second, Chunk: b2[:split]},
		{At: 1100 * time.Millisecond, Chunk: b2[split:]},
		{At: 5 * time.Second},
		{At: 5 * time.Second, Chunk: []byte("$GPRMC,garbage*00\r\n")},
		{At: 5500 * time.Millisecond, Chunk: burst(t0.Add(2 * time.Second))},
	}

	s := summarizeCapture(recs)
	assert.Equal(t, 2, s.Segments)
	assert.Equal(t, 5, s.Chunks)
	assert.Equal(t, 1100*time.Millisecond, s.MaxDuration)
	assert.Equal(t, uint64(6), s.Parser.Accepted)
	assert.Equal(t, uint64(1), s.Parser.Rejected)
	assert.Equal(t, uint64(3), s.Parser.Promotions)
	assert.Equal(t, 4, s.Sentences["GPRMC"])
	assert.Equal(t, 3, s.Sentences["GPGGA"])
	assert.InDelta(t, 47.5, s.LastFix.LatitudeDeg(), 1e-4)
	assert.Equal(t, uint8(2), s.LastFix.Second)
}

func TestSummarizeCapture_Empty(t *testing.T) {
	s := summarizeCapture(nil)
	assert.Zero(t, s.Segments)
	assert.Zero(t, s.Chunks)
}

func TestPrintCaptureSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nmea.log")
	w, err := replay.CreateWriter(path)
	require.NoError(t, err)
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.WriteChunk(time.Now(), burst(t0)))
	require.NoError(t, w.Close())

	var out bytes.Buffer
	require.NoError(t, printCaptureSummary(&out, path))
	text := out.String()
	assert.Contains(t, text, "segments: 1\n")
	assert.Contains(t, text, "fixes: 1\n")
	assert.Contains(t, text, "  GPGGA: 1\n")
	assert.Contains(t, text, "last_fix: 2024-05-01T12:00:00Z")

	require.Error(t, printCaptureSummary(&out, "  "))
	require.Error(t, printCaptureSummary(&out, filepath.Join(t.TempDir(), "missing.log")))
}

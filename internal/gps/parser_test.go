package gps

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(p *Parser, s string) {
	for i := 0; i < len(s); i++ {
		p.Feed(s[i])
	}
}

func TestParser_PublishesOnlyAfterBothSentences(t *testing.T) {
	p := NewParser(nil)
	p.Start(0)

	feed(p, nmeaLine(rmcPayload))
	assert.Equal(t, Fix{}, p.Active())
	assert.Equal(t, uint64(0), p.Stats().Promotions)

	feed(p, nmeaLine(ggaPayload))
	f := p.Active()
	require.True(t, f.Complete())
	assert.InDelta(t, 48.1173, f.LatitudeDeg(), 1e-9)
	assert.InDelta(t, 545.4, f.AltitudeMeters, 1e-9)
	assert.InDelta(t, 22.4, f.GroundSpeedKnots, 1e-9)
	assert.Equal(t, uint64(1), p.Stats().Promotions)
	assert.Equal(t, uint64(2), p.Stats().Accepted)
}

func TestParser_OrderDoesNotMatter(t *testing.T) {
	p := NewParser(nil)
	feed(p, nmeaLine(ggaPayload))
	feed(p, nmeaLine(rmcPayload))
	assert.True(t, p.Active().Complete())
}

func TestParser_NextCycleStartsClean(t *testing.T) {
	p := NewParser(nil)
	feed(p, nmeaLine(rmcPayload))
	feed(p, nmeaLine(ggaPayload))
	first := p.Active()

	assert.Equal(t, Fix{}, *p.fixes.inactive())

	// A lone RMC must not republish the previous altitude.
	feed(p, nmeaLine("GPRMC,123520,A,4807.100,N,01131.000,E,010.0,090.0,230394,003.1,W"))
	assert.Equal(t, first, p.Active())

	feed(p, nmeaLine("GPGGA,123520,4807.100,N,01131.000,E,1,08,0.9,600.0,M,46.9,M,,"))
	second := p.Active()
	assert.Equal(t, uint8(20), second.Second)
	assert.InDelta(t, 600.0, second.AltitudeMeters, 1e-9)
	assert.InDelta(t, 10.0, second.GroundSpeedKnots, 1e-9)
	assert.Equal(t, Fix{}, *p.fixes.inactive())
}

func TestParser_CorruptSentenceNotPublished(t *testing.T) {
	p := NewParser(nil)
	line := []byte(nmeaLine(rmcPayload))
	line[20] ^= 0x01
	feed(p, string(line))
	feed(p, nmeaLine(ggaPayload))

	assert.Equal(t, Fix{}, p.Active())
	assert.Equal(t, uint64(1), p.Stats().Rejected)
	assert.Equal(t, uint64(0), p.Stats().Promotions)
}

func TestParser_IgnoresOtherSentences(t *testing.T) {
	p := NewParser(nil)
	feed(p, nmeaLine("GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00"))
	feed(p, nmeaLine("GPVTG,054.7,T,034.4,M,005.5,N,010.2,K"))
	assert.Equal(t, Fix{}, p.Active())
	assert.Equal(t, uint64(2), p.Stats().Rejected)
}

func TestParser_OverflowDiscardsAndRecovers(t *testing.T) {
	p := NewParser(nil)
	feed(p, strings.Repeat("A", 2*maxSentenceLen))
	assert.Equal(t, uint64(2), p.Stats().Overflows)
	assert.Equal(t, Fix{}, p.Active())

	feed(p, nmeaLine(rmcPayload))
	feed(p, nmeaLine(ggaPayload))
	assert.True(t, p.Active().Complete())
}

func TestParser_LeadingNoiseIsRejected(t *testing.T) {
	p := NewParser(nil)
	// Garbage glued to the front of a sentence fails the prefix test.
	feed(p, "xx"+nmeaLine(rmcPayload))
	feed(p, nmeaLine(ggaPayload))
	assert.False(t, p.Active().Complete())
	assert.Equal(t, uint64(1), p.Stats().Rejected)
}

func TestParser_ProcessDrainsSource(t *testing.T) {
	pump := NewPump(1024)
	p := NewParser(pump)
	p.Start(100)

	pump.Push([]byte(nmeaLine(rmcPayload) + nmeaLine(ggaPayload)))
	p.Process(150)

	assert.True(t, p.Active().Complete())
	assert.Equal(t, uint64(150), uint64(p.LastRead()))
	assert.Equal(t, 0, pump.TryRead(make([]byte, 8)))
}

func TestParser_ProcessHandlesSplitSentences(t *testing.T) {
	pump := NewPump(1024)
	p := NewParser(pump)
	stream := nmeaLine(rmcPayload) + nmeaLine(ggaPayload)

	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		pump.Push([]byte(stream[i:end]))
		p.Process(0)
	}
	assert.True(t, p.Active().Complete())
}

package gps

import (
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/tick"
)

// Stats counts what the parser did with the stream. Drops are normal on a
// noisy link and are only reported, never raised.
type Stats struct {
	Accepted   uint64 `json:"accepted"`
	Rejected   uint64 `json:"rejected"`
	Overflows  uint64 `json:"overflows"`
	Promotions uint64 `json:"promotions"`
}

// Parser assembles sentences byte by byte and publishes complete fixes
// through its double buffer.
//
// Not safe for concurrent use; the scheduler goroutine owns it.
type Parser struct {
	src ByteSource

	buf [maxSentenceLen]byte
	n   int

	fixes Buffer
	stats Stats

	lastRead tick.Tick
	scratch  [256]byte
}

// NewParser returns a parser draining src. src may be nil when bytes are
// pushed with Feed directly.
func NewParser(src ByteSource) *Parser {
	return &Parser{src: src}
}

func (p *Parser) Start(now tick.Tick) {
	p.lastRead = now
	p.reset()
}

// Process feeds every byte src has buffered right now. It never waits for
// more input.
func (p *Parser) Process(now tick.Tick) {
	p.lastRead = now
	if p.src == nil {
		return
	}
	for {
		n := p.src.TryRead(p.scratch[:])
		if n == 0 {
			return
		}
		for _, b := range p.scratch[:n] {
			p.Feed(b)
		}
	}
}

// Feed appends one byte and, when that completes a sentence, decodes it.
func (p *Parser) Feed(b byte) {
	p.buf[p.n] = b
	p.n++

	if sentenceComplete(p.buf[:p.n]) {
		p.handle(p.buf[:p.n])
		p.reset()
	}

	if p.n >= maxSentenceLen {
		p.stats.Overflows++
		p.n = 0
	}
}

// Active returns the most recently completed fix.
func (p *Parser) Active() Fix {
	return p.fixes.Active()
}

func (p *Parser) Stats() Stats {
	return p.stats
}

func (p *Parser) LastRead() tick.Tick {
	return p.lastRead
}

func (p *Parser) handle(s []byte) {
	kind := classify(s)
	if kind == kindUnknown {
		p.stats.Rejected++
		return
	}
	p.stats.Accepted++

	// Drop "\r\n"; the decoders see everything up to and including "*hh".
	body := s[:len(s)-2]
	slot := p.fixes.inactive()
	switch kind {
	case kindRMC:
		decodeRMC(slot, body)
	case kindGGA:
		decodeGGA(slot, body)
	}

	if slot.Complete() {
		p.fixes.promote()
		p.stats.Promotions++
		if log.IsLevelEnabled(log.DebugLevel) {
			f := p.fixes.Active()
			log.WithFields(log.Fields{
				"lat_deg": f.LatitudeDeg(),
				"lon_deg": f.LongitudeDeg(),
				"kt":      f.GroundSpeedKnots,
				"alt_m":   f.AltitudeMeters,
			}).Debug("gps fix published")
		}
	}
}

func (p *Parser) reset() {
	p.n = 0
	for i := range p.buf {
		p.buf[i] = 0
	}
}

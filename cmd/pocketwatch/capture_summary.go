package main

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pocketwatch/internal/gps"
	"pocketwatch/internal/replay"
)

type captureSummary struct {
	Segments    int
	Chunks      int
	Bytes       int
	MaxDuration time.Duration
	Parser      gps.Stats
	LastFix     gps.Fix
	Sentences   map[string]int
}

// summarizeCapture replays records through a fresh parser.
func summarizeCapture(records []replay.Record) captureSummary {
	s := captureSummary{Sentences: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	p := gps.NewParser(nil)
	var line []byte
	origin := time.Duration(0)
	hasChunks := false
	segments := 0

	for _, r := range records {
		if r.Chunk == nil {
			segments++
			origin = r.At
			continue
		}
		hasChunks = true
		s.Chunks++
		s.Bytes += len(r.Chunk)
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}

		for _, b := range r.Chunk {
			p.Feed(b)
			if b == '$' {
				line = line[:0]
			}
			line = append(line, b)
			if b == '\n' {
				if k := sentenceKind(line); k != "" {
					s.Sentences[k]++
				}
				line = line[:0]
			}
		}
	}
	if segments == 0 && hasChunks {
		segments = 1
	}
	s.Segments = segments
	s.Parser = p.Stats()
	s.LastFix = p.Active()
	return s
}

// sentenceKind returns the address field of a "$....,"-style line.
func sentenceKind(line []byte) string {
	if len(line) < 2 || line[0] != '$' {
		return ""
	}
	end := bytes.IndexAny(line, ",*")
	if end <= 1 {
		return ""
	}
	return string(line[1:end])
}

func printCaptureSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is empty")
	}
	recs, err := replay.Load(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "accepted: %d\n", s.Parser.Accepted)
	fmt.Fprintf(w, "rejected: %d\n", s.Parser.Rejected)
	fmt.Fprintf(w, "overflows: %d\n", s.Parser.Overflows)
	fmt.Fprintf(w, "fixes: %d\n", s.Parser.Promotions)
	if s.Parser.Promotions > 0 {
		f := s.LastFix
		fmt.Fprintf(w, "last_fix: 20%02d-%02d-%02dT%02d:%02d:%02dZ lat=%.6f lon=%.6f alt_m=%.1f\n",
			f.YearSince2000, f.Month, f.Day, f.Hour, f.Minute, f.Second,
			f.LatitudeDeg(), f.LongitudeDeg(), f.AltitudeMeters)
	}

	keys := make([]string, 0, len(s.Sentences))
	for k := range s.Sentences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "sentences:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, s.Sentences[k])
	}
	return nil
}

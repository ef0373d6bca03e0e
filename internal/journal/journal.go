// Package journal keeps a history of saved waypoints in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"pocketwatch/internal/waypoint"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS captures (
		id          TEXT PRIMARY KEY,
		slot        TEXT NOT NULL,
		lat         REAL,
		lon         REAL,
		captured_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS captures_at ON captures(captured_at);`,
}

// Capture is one saved waypoint. Coordinates are degrees. A NaN or Inf
// coordinate is stored as NULL and comes back as 0 with Finite false.
type Capture struct {
	ID         string    `json:"id"`
	Slot       string    `json:"slot"`
	LatDeg     float64   `json:"lat_deg"`
	LonDeg     float64   `json:"lon_deg"`
	Finite     bool      `json:"finite"`
	CapturedAt time.Time `json:"captured_at"`
}

func column(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "init journal %s", path)
		}
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records c as the new value of slot.
func (j *Journal) Append(slot waypoint.Slot, c waypoint.Coord) (Capture, error) {
	lat, lon := column(c.LatDeg()), column(c.LonDeg())
	rec := Capture{
		ID:         uuid.NewString(),
		Slot:       slot.String(),
		LatDeg:     lat.Float64,
		LonDeg:     lon.Float64,
		Finite:     lat.Valid && lon.Valid,
		CapturedAt: j.now().UTC(),
	}
	_, err := j.db.Exec(
		`INSERT INTO captures(id, slot, lat, lon, captured_at) VALUES(?, ?, ?, ?, ?)`,
		rec.ID, rec.Slot, lat, lon, rec.CapturedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Capture{}, errors.Wrap(err, "journal insert")
	}
	return rec, nil
}

// Recent returns up to n captures, newest first.
func (j *Journal) Recent(n int) ([]Capture, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := j.db.Query(
		`SELECT id, slot, lat, lon, captured_at FROM captures ORDER BY captured_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "journal query")
	}
	defer rows.Close()

	out := make([]Capture, 0, n)
	for rows.Next() {
		var c Capture
		var lat, lon sql.NullFloat64
		var at string
		if err := rows.Scan(&c.ID, &c.Slot, &lat, &lon, &at); err != nil {
			return nil, errors.Wrap(err, "journal scan")
		}
		c.LatDeg, c.LonDeg = lat.Float64, lon.Float64
		c.Finite = lat.Valid && lon.Valid
		c.CapturedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, errors.Wrapf(err, "journal timestamp %q", at)
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "journal rows")
}

// Count is the number of captures stored.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "journal count")
	}
	return n, nil
}

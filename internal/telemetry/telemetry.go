// Package telemetry mirrors the dial to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/dial"
	"pocketwatch/internal/gps"
	"pocketwatch/internal/waypoint"
)

type Config struct {
	Broker   string
	ClientID string
	// Topics are Prefix + "/hands" and Prefix + "/waypoint/<slot>".
	Prefix string
}

// Fix is the part of a gps.Fix worth publishing.
// Fix is the fix summary in a hands frame. NaN and Inf, which JSON cannot
// carry, are sent as 0 with Finite false.
type Fix struct {
	Complete bool    `json:"complete"`
	Finite   bool    `json:"finite"`
	UTC      string  `json:"utc"`
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	SpeedKt  float64 `json:"speed_kt"`
	TrackDeg float64 `json:"track_deg"`
	AltM     float64 `json:"alt_m"`
}

func finite(v float64, ok *bool) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*ok = false
		return 0
	}
	return v
}

func summarize(f gps.Fix) Fix {
	s := Fix{
		Complete: f.Complete(),
		Finite:   true,
		UTC: fmt.Sprintf("20%02d-%02d-%02dT%02d:%02d:%02dZ",
			f.YearSince2000, f.Month, f.Day, f.Hour, f.Minute, f.Second),
	}
	s.LatDeg = finite(f.LatitudeDeg(), &s.Finite)
	s.LonDeg = finite(f.LongitudeDeg(), &s.Finite)
	s.SpeedKt = finite(f.GroundSpeedKnots, &s.Finite)
	s.TrackDeg = finite(f.TrackAngle*180/math.Pi, &s.Finite)
	s.AltM = finite(f.AltitudeMeters, &s.Finite)
	return s
}

// Frame is one rendered dial state.
type Frame struct {
	Mode   string `json:"mode"`
	Big    int    `json:"big"`
	Medium int    `json:"medium"`
	Small  int    `json:"small"`
	Fix    Fix    `json:"fix"`
}

func NewFrame(s dial.Snapshot, h dial.Hands) Frame {
	return Frame{
		Mode:   s.Mode.String(),
		Big:    int(h.Big),
		Medium: int(h.Medium),
		Small:  int(h.Small),
		Fix:    summarize(s.Fix),
	}
}

// Waypoint is the retained message for a saved slot.
type Waypoint struct {
	Slot    string    `json:"slot"`
	LatDeg  float64   `json:"lat_deg"`
	LonDeg  float64   `json:"lon_deg"`
	Finite  bool      `json:"finite"`
	SavedAt time.Time `json:"saved_at"`
}

// sender is the slice of mqtt.Client the publisher needs.
type sender interface {
	send(topic string, retained bool, payload []byte)
}

type pahoSender struct {
	client mqtt.Client
}

func (p pahoSender) send(topic string, retained bool, payload []byte) {
	// Not waited on; a slow broker must not stall the scheduler.
	p.client.Publish(topic, 0, retained, payload)
}

type Publisher struct {
	prefix string
	out    sender
	client mqtt.Client
	now    func() time.Time

	sent   atomic.Uint64
	failed atomic.Uint64
}

// Connect dials the broker and returns a publisher.
func Connect(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "pocketwatch"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt connect %s", cfg.Broker)
	}
	log.WithFields(log.Fields{"broker": cfg.Broker, "client_id": clientID}).Info("mqtt connected")

	p := newPublisher(cfg.Prefix, pahoSender{client: client})
	p.client = client
	return p, nil
}

func newPublisher(prefix string, out sender) *Publisher {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "pocketwatch"
	}
	return &Publisher{prefix: prefix, out: out, now: time.Now}
}

// Hands publishes a rendered frame. Suitable as dial.Engine.OnHands.
func (p *Publisher) Hands(s dial.Snapshot, h dial.Hands, _ dial.Frame) {
	p.publish(p.prefix+"/hands", false, NewFrame(s, h))
}

// Commit publishes the saved waypoint as a retained message.
func (p *Publisher) Commit(c waypoint.Commit) {
	w := Waypoint{Slot: c.Slot.String(), Finite: true, SavedAt: p.now().UTC()}
	w.LatDeg = finite(c.Coord.LatDeg(), &w.Finite)
	w.LonDeg = finite(c.Coord.LonDeg(), &w.Finite)
	p.publish(p.prefix+"/waypoint/"+c.Slot.String(), true, w)
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		p.failed.Add(1)
		log.WithError(err).WithField("topic", topic).Warn("telemetry marshal failed")
		return
	}
	p.out.send(topic, retained, b)
	p.sent.Add(1)
}

// Sent and Failed count publish attempts.
func (p *Publisher) Sent() uint64   { return p.sent.Load() }
func (p *Publisher) Failed() uint64 { return p.failed.Load() }

func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}

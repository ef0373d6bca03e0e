package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/blink"
	"pocketwatch/internal/compass"
	"pocketwatch/internal/config"
	"pocketwatch/internal/dial"
	"pocketwatch/internal/gpio"
	"pocketwatch/internal/gps"
	"pocketwatch/internal/journal"
	"pocketwatch/internal/replay"
	"pocketwatch/internal/selector"
	"pocketwatch/internal/sim"
	"pocketwatch/internal/telemetry"
	"pocketwatch/internal/tick"
	"pocketwatch/internal/waypoint"
	"pocketwatch/internal/web"
)

// runtime owns every component and drives them from one goroutine.
type runtime struct {
	cfg    config.Config
	clock  *tick.Clock
	status *web.Status
	live   *web.HandsBroadcaster
	errs   *errorGate

	source   string
	gpsSvc   *gps.Service
	parser   *gps.Parser
	recorder *replay.Writer

	compass  *compass.Compass
	selector *selector.Selector
	mode     dial.Mode
	keeper   *waypoint.Keeper
	store    waypoint.Store
	engine   *dial.Engine
	steps    *countingStepper
	blinker  *blink.Blinker

	journal   *journal.Journal
	telemetry *telemetry.Publisher
	commits   chan waypoint.Commit
	workers   sync.WaitGroup

	peripherals map[string]bool
	closers     []io.Closer
}

func newRuntime(ctx context.Context, cfg config.Config, status *web.Status, live *web.HandsBroadcaster) (*runtime, error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}
	if status == nil {
		return nil, errors.New("status is nil")
	}

	r := &runtime{
		cfg:         c,
		clock:       tick.NewClock(0),
		status:      status,
		live:        live,
		errs:        newErrorGate(10 * time.Second),
		steps:       &countingStepper{},
		commits:     make(chan waypoint.Commit, 8),
		peripherals: map[string]bool{},
	}

	if err := r.initGPS(ctx); err != nil {
		r.Close()
		return nil, err
	}
	r.initCompass()
	if err := r.initSelector(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.initKeeper(); err != nil {
		r.Close()
		return nil, err
	}
	r.initDial()
	r.initBlink()
	r.initSinks()

	status.SetStatic(r.source, r.peripherals, r.cfg.Journal.Path)
	return r, nil
}

func (r *runtime) initGPS(ctx context.Context) error {
	g := r.cfg.GPS
	svcCfg := gps.Config{
		Enable:     g.Device != config.GPSDeviceOff || g.Replay.Enable,
		Device:     g.Device,
		Baud:       g.Baud,
		BufferSize: g.BufferSize,
		// A finished replay stays finished; devices and the sim come back.
		Reconnect: !g.Replay.Enable,
	}

	var open gps.Opener
	switch {
	case g.Replay.Enable:
		records, err := replay.Load(g.Replay.Path)
		if err != nil {
			return err
		}
		open = func() (io.ReadCloser, error) {
			return replay.NewStream(records, g.Replay.Speed, g.Replay.Loop), nil
		}
		r.source = "replay:" + g.Replay.Path
		svcCfg.Device = g.Replay.Path
	case g.Device == config.GPSDeviceSim:
		path, err := simPath(r.cfg.Sim)
		if err != nil {
			return err
		}
		open = func() (io.ReadCloser, error) {
			return sim.NewReceiver(path, r.cfg.Sim.Interval), nil
		}
		r.source = "sim"
	case g.Device == config.GPSDeviceOff:
		r.source = "off"
	default:
		r.source = "serial"
		if g.Device != "" {
			r.source += ":" + g.Device
		}
	}

	r.gpsSvc = gps.New(svcCfg, open)
	if g.Record.Enable {
		w, err := replay.CreateWriter(g.Record.Path)
		if err != nil {
			return err
		}
		r.recorder = w
		r.gpsSvc.Tap(w.Record)
		log.WithField("path", g.Record.Path).Info("gps capture recording")
	}
	if err := r.gpsSvc.Start(ctx); err != nil {
		// Keep the dial running; it shows the last stored waypoints and clock.
		log.WithError(err).Warn("gps open failed, retrying in background")
	}
	r.peripherals["gps"] = r.gpsSvc.Status().Open
	r.parser = gps.NewParser(r.gpsSvc.Source())
	return nil
}

func simPath(cfg config.SimConfig) (sim.Path, error) {
	if strings.TrimSpace(cfg.Route) != "" {
		route, err := sim.LoadRoute(cfg.Route)
		if err != nil {
			return nil, err
		}
		return route, nil
	}
	return sim.Walk{
		CenterLatDeg: cfg.CenterLatDeg,
		CenterLonDeg: cfg.CenterLonDeg,
		AltMeters:    cfg.AltMeters,
		RadiusM:      cfg.RadiusM,
		Period:       cfg.Period,
	}, nil
}

func (r *runtime) initCompass() {
	r.peripherals["compass"] = false
	if !r.cfg.Compass.Enable {
		return
	}
	c, closer, err := openCompassFn(r.cfg.Compass)
	if err != nil {
		log.WithError(err).Warn("compass init failed")
		return
	}
	r.compass = c
	r.closers = append(r.closers, closer)
	r.peripherals["compass"] = true
}

func (r *runtime) initSelector() error {
	s := r.cfg.Selector
	r.peripherals["selector"] = false
	if s.Mode != "" {
		r.mode = dial.Mode(config.ModeIndex(s.Mode))
		return nil
	}

	adc, closer, err := openADCFn(s.ADC)
	if err != nil {
		log.WithError(err).Warn("selector adc init failed, showing clock")
		r.mode = dial.ModeClock
		return nil
	}
	r.closers = append(r.closers, closer)

	sel, err := selector.New(selector.Config{
		Choices: uint8(s.Choices),
		Ratio:   s.Ratio,
		Refresh: tick.FromDuration(s.Refresh),
		Settle:  tick.FromDuration(s.Settle),
	}, adc)
	if err != nil {
		return err
	}
	r.selector = sel
	r.peripherals["selector"] = true
	return nil
}

func (r *runtime) initKeeper() error {
	w := r.cfg.Waypoint

	fs, err := waypoint.OpenFile(w.Path)
	if err != nil {
		log.WithError(err).Warn("waypoint store unavailable, waypoints will not survive a restart")
		r.store = waypoint.NewMemStore()
	} else {
		r.store = fs
		r.closers = append(r.closers, fs)
	}

	var button waypoint.Button = gpio.Button{In: gpio.Level(0)}
	r.peripherals["button"] = false
	if w.ButtonEnable {
		b, closer, err := openButtonFn(w)
		if err != nil {
			log.WithError(err).Warn("button init failed")
		} else {
			button = b
			r.closers = append(r.closers, closer)
			r.peripherals["button"] = true
		}
	}

	k, err := waypoint.NewKeeper(waypoint.Config{
		MinRelease: tick.FromDuration(w.MinRelease),
		MaxRelease: tick.FromDuration(w.MaxRelease),
		FastHold:   tick.FromDuration(w.FastHold),
		SlowHold:   tick.FromDuration(w.SlowHold),
		FastHolds:  uint8(w.FastHolds),
		SlowHolds:  uint8(w.SlowHolds),
	}, button, r.store)
	if err != nil {
		return err
	}
	k.OnCommit = r.onCommit
	r.keeper = k
	return nil
}

func (r *runtime) initDial() {
	d := r.cfg.Dial

	var strip dial.Strip
	r.peripherals["ledring"] = false
	if d.LED.Enable {
		ring, err := openRingFn(d.LED)
		if err != nil {
			log.WithError(err).Warn("led ring init failed")
		} else {
			strip = ring
			r.closers = append(r.closers, ring)
			r.peripherals["ledring"] = true
		}
	}

	r.peripherals["stepper"] = false
	if d.Stepper.Enable {
		m, closers, err := openStepperFn(d.Stepper)
		if err != nil {
			log.WithError(err).Warn("stepper init failed")
		} else {
			r.steps.motor = m
			r.closers = append(r.closers, closers...)
			r.peripherals["stepper"] = true
		}
	}

	r.engine = dial.NewEngine(dial.Config{
		Refresh: tick.FromDuration(d.Refresh),
		Motion:  tick.FromDuration(d.Motion),
	}, strip, r.steps)
	r.engine.OnHands = r.onHands
}

func (r *runtime) initBlink() {
	b := r.cfg.Blink
	r.peripherals["blink"] = false
	if !b.Enable {
		return
	}
	out, closer, err := openHeartbeatFn(b)
	if err != nil {
		log.WithError(err).Warn("heartbeat init failed")
		return
	}
	r.closers = append(r.closers, closer)
	r.blinker = blink.New(out, tick.FromDuration(b.On), tick.FromDuration(b.Off))
	r.peripherals["blink"] = true
}

func (r *runtime) initSinks() {
	r.peripherals["journal"] = false
	if r.cfg.Journal.Enable {
		j, err := journal.Open(r.cfg.Journal.Path)
		if err != nil {
			log.WithError(err).Warn("journal unavailable")
		} else {
			r.journal = j
			r.peripherals["journal"] = true
		}
	}

	r.peripherals["mqtt"] = false
	if r.cfg.MQTT.Enable {
		p, err := telemetry.Connect(telemetry.Config{
			Broker:   r.cfg.MQTT.Broker,
			ClientID: r.cfg.MQTT.ClientID,
			Prefix:   r.cfg.MQTT.Prefix,
		})
		if err != nil {
			log.WithError(err).Warn("mqtt unavailable")
		} else {
			r.telemetry = p
			r.peripherals["mqtt"] = true
		}
	}
}

// Journal exposes the capture history to the web server, or nil.
func (r *runtime) Journal() web.CaptureLister {
	if r.journal == nil {
		return nil
	}
	return r.journal
}

// start brings every component to its initial state at now.
func (r *runtime) start(now tick.Tick) error {
	r.parser.Start(now)
	if r.compass != nil {
		if err := r.compass.Start(now); err != nil {
			r.errs.Warn("compass", err)
		}
	}
	if r.selector != nil {
		if err := r.selector.Start(now); err != nil {
			r.errs.Warn("selector", err)
		}
	}
	if err := r.keeper.Start(now); err != nil {
		r.errs.Warn("waypoint", err)
	}
	if r.steps.motor != nil {
		if err := r.steps.motor.Start(); err != nil {
			r.errs.Warn("stepper", err)
		}
	}
	if err := r.engine.Start(now); err != nil {
		r.errs.Warn("dial", err)
	}
	if r.blinker != nil {
		if err := r.blinker.Start(now); err != nil {
			r.errs.Warn("blink", err)
		}
	}

	r.workers.Add(1)
	go r.commitWorker()
	return nil
}

// step is one scheduler pass. Every component is polled in a fixed order and
// none of them block.
func (r *runtime) step(now tick.Tick) {
	r.parser.Process(now)

	if r.compass != nil {
		r.errs.Warn("compass", r.compass.Process(now))
	}
	mode := r.mode
	if r.selector != nil {
		r.errs.Warn("selector", r.selector.Process(now))
		mode = dial.Mode(r.selector.Choice())
	}

	fix := r.parser.Active()
	r.errs.Warn("waypoint", r.keeper.Process(now, waypoint.Coord{Lat: fix.Latitude, Lon: fix.Longitude}))

	snap := dial.Snapshot{
		Fix:          fix,
		Mode:         mode,
		FastWaypoint: r.keeper.Fast(),
		SlowWaypoint: r.keeper.Slow(),
	}
	if r.compass != nil {
		snap.Heading = r.compass.Heading()
		snap.CompassX, snap.CompassY, snap.CompassZ = r.compass.X(), r.compass.Y(), r.compass.Z()
	}
	r.errs.Warn("dial", r.engine.Process(now, snap))

	if r.blinker != nil {
		r.errs.Warn("blink", r.blinker.Process(now))
	}

	hands, ok := r.engine.Last()
	fastHolds, slowHolds := r.keeper.Counts()
	live := web.Live{
		Snapshot:   snap,
		Hands:      hands,
		HandsValid: ok,
		Parser:     r.parser.Stats(),
		Link:       r.gpsSvc.Status(),
		FastHolds:  fastHolds,
		SlowHolds:  slowHolds,
		Rendered:   r.engine.Rendered(),
		Steps:      r.steps.steps,
	}
	if r.blinker != nil {
		live.Heartbeats = r.blinker.Flips()
	}
	if r.telemetry != nil {
		live.MQTTSent, live.MQTTFailed = r.telemetry.Sent(), r.telemetry.Failed()
	}
	r.status.SetLive(live)
	r.status.MarkTick(time.Now().UTC())
}

func (r *runtime) onHands(s dial.Snapshot, h dial.Hands, f dial.Frame) {
	if r.live != nil {
		r.live.Publish(s, h, f)
	}
	if r.telemetry != nil {
		r.telemetry.Hands(s, h, f)
	}
}

// onCommit hands the commit to the worker; the scheduler never waits on
// the journal or the broker.
func (r *runtime) onCommit(c waypoint.Commit) {
	select {
	case r.commits <- c:
	default:
		log.WithField("slot", c.Slot.String()).Warn("commit queue full, journal entry dropped")
	}
}

func (r *runtime) commitWorker() {
	defer r.workers.Done()
	for c := range r.commits {
		if r.journal != nil {
			rec, err := r.journal.Append(c.Slot, c.Coord)
			if err != nil {
				log.WithError(err).Warn("journal append failed")
			} else {
				log.WithFields(log.Fields{"id": rec.ID, "slot": rec.Slot}).Debug("journal append")
			}
		}
		if r.telemetry != nil {
			r.telemetry.Commit(c)
		}
	}
}

// Run starts the components and polls them until ctx is done.
func (r *runtime) Run(ctx context.Context) error {
	if err := r.start(r.clock.Now()); err != nil {
		return err
	}
	t := time.NewTicker(r.cfg.Scheduler.Period)
	defer t.Stop()

	log.WithFields(log.Fields{
		"source": r.source,
		"period": r.cfg.Scheduler.Period,
		"mode":   r.mode.String(),
	}).Info("scheduler running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.step(r.clock.Now())
		}
	}
}

// Close releases everything. Safe to call once Run has returned.
func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.gpsSvc != nil {
		r.gpsSvc.Close()
	}
	if r.commits != nil {
		close(r.commits)
		r.workers.Wait()
		r.commits = nil
	}
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			log.WithError(err).Warn("capture close failed")
		}
		r.recorder = nil
	}
	if r.steps.motor != nil {
		_ = r.steps.motor.Sleep()
	}
	if r.journal != nil {
		_ = r.journal.Close()
		r.journal = nil
	}
	if r.telemetry != nil {
		r.telemetry.Close()
		r.telemetry = nil
	}
	if err := closeAll(r.closers); err != nil {
		log.WithError(err).Warn("peripheral close failed")
	}
	r.closers = nil
}

package waypoint

import (
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/tick"
)

// Coord is a position in radians.
type Coord struct {
	Lat float64 `json:"lat_rad"`
	Lon float64 `json:"lon_rad"`
}

func (c Coord) LatDeg() float64 { return c.Lat * 180 / math.Pi }
func (c Coord) LonDeg() float64 { return c.Lon * 180 / math.Pi }

// Slot names one of the two saved waypoints.
type Slot int

const (
	SlotFast Slot = iota
	SlotSlow
)

func (s Slot) String() string {
	switch s {
	case SlotFast:
		return "fast"
	case SlotSlow:
		return "slow"
	default:
		return "unknown"
	}
}

func (s Slot) offsets() (lat, lon int64) {
	if s == SlotSlow {
		return OffsetSlowLat, OffsetSlowLon
	}
	return OffsetFastLat, OffsetFastLon
}

// Commit describes one waypoint write.
type Commit struct {
	Slot  Slot
	Coord Coord
	At    tick.Tick
}

// Button reports the current level of the capture button.
type Button interface {
	Pressed() (bool, error)
}

// Config holds the gesture timings, all in ticks.
type Config struct {
	// Allowed gap between holds of one sequence, inclusive.
	MinRelease tick.Tick
	MaxRelease tick.Tick

	FastHold tick.Tick
	SlowHold tick.Tick

	// Holds needed to commit.
	FastHolds uint8
	SlowHolds uint8
}

// Keeper turns button holds into waypoint commits.
//
// A run of holds of one kind (fast or slow), separated by releases inside the
// gap window, saves the position seen when the run started. The commit fires
// while the last hold is still down. Mixing kinds, holding too briefly or
// releasing outside the window zeroes the counts.
//
// Not safe for concurrent use.
type Keeper struct {
	cfg    Config
	button Button
	store  Store

	// OnCommit, when set, runs after a commit reached the store.
	OnCommit func(Commit)

	wasPressed bool
	lastEdge   tick.Tick
	fastHolds  uint8
	slowHolds  uint8
	captured   Coord

	fast Coord
	slow Coord
}

func NewKeeper(cfg Config, button Button, store Store) (*Keeper, error) {
	if button == nil {
		return nil, errors.New("waypoint keeper needs a button")
	}
	if store == nil {
		return nil, errors.New("waypoint keeper needs a store")
	}
	return &Keeper{cfg: cfg, button: button, store: store}, nil
}

// Start samples the button and loads the saved waypoints. A button that is
// already down counts as pressed at now.
func (k *Keeper) Start(now tick.Tick) error {
	pressed, err := k.button.Pressed()
	if err != nil {
		// An unreadable button counts as released; the stored waypoints still load.
		pressed = false
		err = errors.Wrap(err, "read button")
	}
	k.wasPressed = pressed
	if pressed {
		k.lastEdge = now
	}
	if rerr := k.Reload(); rerr != nil {
		return rerr
	}
	return err
}

// Reload re-reads both waypoints from the store.
func (k *Keeper) Reload() error {
	fast, err := k.read(SlotFast)
	if err != nil {
		return err
	}
	slow, err := k.read(SlotSlow)
	if err != nil {
		return err
	}
	k.fast, k.slow = fast, slow
	return nil
}

func (k *Keeper) Fast() Coord { return k.fast }
func (k *Keeper) Slow() Coord { return k.slow }

// Process advances the gesture state with the current button level. live is
// the position to capture if this call starts a new sequence.
func (k *Keeper) Process(now tick.Tick, live Coord) error {
	pressed, err := k.button.Pressed()
	if err != nil {
		return errors.Wrap(err, "read button")
	}

	var commitErr error
	switch {
	case pressed && k.wasPressed:
		held := tick.Since(now, k.lastEdge)
		if held >= k.cfg.SlowHold && int(k.slowHolds)+1 >= int(k.cfg.SlowHolds) && k.fastHolds == 0 {
			commitErr = k.commit(SlotSlow, now)
			k.slowHolds = 0
		} else if held >= k.cfg.FastHold && int(k.fastHolds)+1 >= int(k.cfg.FastHolds) && k.slowHolds == 0 {
			commitErr = k.commit(SlotFast, now)
			k.fastHolds = 0
		}

	case pressed && !k.wasPressed:
		gap := tick.Since(now, k.lastEdge)
		if k.fastHolds == 0 && k.slowHolds == 0 {
			k.captured = live
		} else if gap < k.cfg.MinRelease || gap > k.cfg.MaxRelease {
			k.fastHolds, k.slowHolds = 0, 0
		}
		k.lastEdge = now

	case !pressed && k.wasPressed:
		held := tick.Since(now, k.lastEdge)
		if held >= k.cfg.SlowHold && k.fastHolds == 0 {
			k.slowHolds++
			k.fastHolds = 0
		} else if held >= k.cfg.FastHold && k.slowHolds == 0 {
			k.fastHolds++
			k.slowHolds = 0
		} else {
			k.fastHolds, k.slowHolds = 0, 0
		}
		k.lastEdge = now
	}

	k.wasPressed = pressed
	return commitErr
}

// Counts returns the completed fast and slow holds of the current sequence.
func (k *Keeper) Counts() (fast, slow uint8) {
	return k.fastHolds, k.slowHolds
}

func (k *Keeper) commit(slot Slot, now tick.Tick) error {
	latOff, lonOff := slot.offsets()
	c := k.captured
	if err := WriteWaypoint(k.store, latOff, c.Lat); err != nil {
		return errors.Wrapf(err, "commit %s waypoint", slot)
	}
	if err := WriteWaypoint(k.store, lonOff, c.Lon); err != nil {
		return errors.Wrapf(err, "commit %s waypoint", slot)
	}
	if slot == SlotSlow {
		k.slow = c
	} else {
		k.fast = c
	}
	log.WithFields(log.Fields{
		"slot":    slot.String(),
		"lat_deg": c.LatDeg(),
		"lon_deg": c.LonDeg(),
	}).Info("waypoint saved")
	if k.OnCommit != nil {
		k.OnCommit(Commit{Slot: slot, Coord: c, At: now})
	}
	return nil
}

func (k *Keeper) read(slot Slot) (Coord, error) {
	latOff, lonOff := slot.offsets()
	lat, err := ReadWaypoint(k.store, latOff)
	if err != nil {
		return Coord{}, err
	}
	lon, err := ReadWaypoint(k.store, lonOff)
	if err != nil {
		return Coord{}, err
	}
	return Coord{Lat: lat, Lon: lon}, nil
}

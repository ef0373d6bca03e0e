package sim

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RouteScript is a keyframed track loaded from YAML.
//
//	version: 1
//	duration: 10m      # optional, defaults to the last keyframe
//	loop: true
//	keyframes:
//	  - t: 0s
//	    lat_deg: 39.7321
//	    lon_deg: -104.9610
//	    alt_m: 1609
//	    ground_kt: 3
//	    track_deg: 90
//
// Keyframes must be sorted by t.
type RouteScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Loop      bool          `yaml:"loop"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is the state at T.
type Keyframe struct {
	T         time.Duration `yaml:"t"`
	LatDeg    float64       `yaml:"lat_deg"`
	LonDeg    float64       `yaml:"lon_deg"`
	AltMeters float64       `yaml:"alt_m"`
	GroundKt  float64       `yaml:"ground_kt"`
	TrackDeg  float64       `yaml:"track_deg"`
}

// Route is a validated RouteScript. Between keyframes every value is
// interpolated linearly; track takes the short way round.
type Route struct {
	script   RouteScript
	duration time.Duration
}

func LoadRoute(path string) (*Route, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read route %s", path)
	}
	script, err := ParseRouteYAML(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parse route %s", path)
	}
	return NewRoute(script)
}

func ParseRouteYAML(b []byte) (RouteScript, error) {
	var s RouteScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return RouteScript{}, err
	}
	return s, nil
}

func NewRoute(script RouteScript) (*Route, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, errors.Errorf("unsupported route version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, errors.New("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, errors.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, errors.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}
	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	return &Route{script: script, duration: dur}, nil
}

func (r *Route) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.duration
}

// StateAt wraps elapsed when the script loops and clamps it otherwise.
func (r *Route) StateAt(elapsed time.Duration) State {
	if r == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if r.duration > 0 {
		if r.script.Loop {
			elapsed %= r.duration
		} else if elapsed > r.duration {
			elapsed = r.duration
		}
	}

	k0, k1, alpha := r.segment(elapsed)
	return State{
		LatDeg:    lerp(k0.LatDeg, k1.LatDeg, alpha),
		LonDeg:    lerp(k0.LonDeg, k1.LonDeg, alpha),
		TrackDeg:  lerpAngleDeg(k0.TrackDeg, k1.TrackDeg, alpha),
		GroundKt:  lerp(k0.GroundKt, k1.GroundKt, alpha),
		AltMeters: lerp(k0.AltMeters, k1.AltMeters, alpha),
	}
}

func (r *Route) segment(t time.Duration) (Keyframe, Keyframe, float64) {
	kfs := r.script.Keyframes
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0, k1 := kfs[idx-1], kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	norm := func(x float64) float64 {
		for x < 0 {
			x += 360
		}
		for x >= 360 {
			x -= 360
		}
		return x
	}
	a0, a1 = norm(a0), norm(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return norm(a0 + delta*t)
}

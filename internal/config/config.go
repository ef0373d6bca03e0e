// Package config loads the device configuration from YAML or TOML.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Durations longer than this do not fit the wrapping millisecond timebase
// with room to spare.
const maxCadence = 24 * time.Hour

type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	GPS       GPSConfig       `yaml:"gps" toml:"gps"`
	Sim       SimConfig       `yaml:"sim" toml:"sim"`
	Compass   CompassConfig   `yaml:"compass" toml:"compass"`
	Selector  SelectorConfig  `yaml:"selector" toml:"selector"`
	Waypoint  WaypointConfig  `yaml:"waypoint" toml:"waypoint"`
	Journal   JournalConfig   `yaml:"journal" toml:"journal"`
	Dial      DialConfig      `yaml:"dial" toml:"dial"`
	Blink     BlinkConfig     `yaml:"blink" toml:"blink"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Web       WebConfig       `yaml:"web" toml:"web"`
}

type SchedulerConfig struct {
	// Period is how often every component's Process runs.
	Period time.Duration `yaml:"period" toml:"period"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Special gps.device values.
const (
	GPSDeviceSim = "sim"
	GPSDeviceOff = "off"
)

type GPSConfig struct {
	// Device is a serial path, "sim", "off", or empty to auto-detect.
	Device     string       `yaml:"device" toml:"device"`
	Baud       int          `yaml:"baud" toml:"baud"`
	BufferSize int          `yaml:"buffer_size" toml:"buffer_size"`
	Record     RecordConfig `yaml:"record" toml:"record"`
	Replay     ReplayConfig `yaml:"replay" toml:"replay"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Path   string `yaml:"path" toml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable" toml:"enable"`
	Path   string  `yaml:"path" toml:"path"`
	Speed  float64 `yaml:"speed" toml:"speed"`
	Loop   bool    `yaml:"loop" toml:"loop"`
}

type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg" toml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg" toml:"center_lon_deg"`
	AltMeters    float64       `yaml:"alt_meters" toml:"alt_meters"`
	RadiusM      float64       `yaml:"radius_m" toml:"radius_m"`
	Period       time.Duration `yaml:"period" toml:"period"`
	// Interval between sentence bursts.
	Interval time.Duration `yaml:"interval" toml:"interval"`
	// Route, when set, is a YAML keyframe script used instead of the walk.
	Route string `yaml:"route" toml:"route"`
}

type CompassConfig struct {
	Enable bool          `yaml:"enable" toml:"enable"`
	Bus    int           `yaml:"bus" toml:"bus"`
	Period time.Duration `yaml:"period" toml:"period"`
}

type SelectorConfig struct {
	// Mode pins the display mode and bypasses the ADC.
	Mode    string        `yaml:"mode" toml:"mode"`
	Choices int           `yaml:"choices" toml:"choices"`
	Ratio   float64       `yaml:"ratio" toml:"ratio"`
	Refresh time.Duration `yaml:"refresh" toml:"refresh"`
	Settle  time.Duration `yaml:"settle" toml:"settle"`
	ADC     ADCConfig     `yaml:"adc" toml:"adc"`
}

type ADCConfig struct {
	Bus     string `yaml:"bus" toml:"bus"`
	Address uint16 `yaml:"address" toml:"address"`
	Channel int    `yaml:"channel" toml:"channel"`
}

type WaypointConfig struct {
	Path         string        `yaml:"path" toml:"path"`
	ButtonEnable bool          `yaml:"button_enable" toml:"button_enable"`
	ButtonPin    int           `yaml:"button_pin" toml:"button_pin"`
	ActiveLow    bool          `yaml:"active_low" toml:"active_low"`
	MinRelease   time.Duration `yaml:"min_release" toml:"min_release"`
	MaxRelease   time.Duration `yaml:"max_release" toml:"max_release"`
	FastHold     time.Duration `yaml:"fast_hold" toml:"fast_hold"`
	SlowHold     time.Duration `yaml:"slow_hold" toml:"slow_hold"`
	FastHolds    int           `yaml:"fast_holds" toml:"fast_holds"`
	SlowHolds    int           `yaml:"slow_holds" toml:"slow_holds"`
}

type JournalConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Path   string `yaml:"path" toml:"path"`
}

type DialConfig struct {
	Refresh time.Duration `yaml:"refresh" toml:"refresh"`
	Motion  time.Duration `yaml:"motion" toml:"motion"`
	LED     LEDConfig     `yaml:"led" toml:"led"`
	Stepper StepperConfig `yaml:"stepper" toml:"stepper"`
}

type LEDConfig struct {
	Enable     bool   `yaml:"enable" toml:"enable"`
	SPIPort    string `yaml:"spi_port" toml:"spi_port"`
	Brightness uint8  `yaml:"brightness" toml:"brightness"`
	FreqHz     int64  `yaml:"freq_hz" toml:"freq_hz"`
}

type StepperConfig struct {
	Enable bool `yaml:"enable" toml:"enable"`
	A1     int  `yaml:"a1" toml:"a1"`
	A2     int  `yaml:"a2" toml:"a2"`
	B1     int  `yaml:"b1" toml:"b1"`
	B2     int  `yaml:"b2" toml:"b2"`
}

type BlinkConfig struct {
	Enable bool          `yaml:"enable" toml:"enable"`
	Pin    int           `yaml:"pin" toml:"pin"`
	On     time.Duration `yaml:"on" toml:"on"`
	Off    time.Duration `yaml:"off" toml:"off"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable" toml:"enable"`
	Broker   string `yaml:"broker" toml:"broker"`
	ClientID string `yaml:"client_id" toml:"client_id"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Listen string `yaml:"listen" toml:"listen"`
}

// SelectorModes are the names accepted by selector.mode, in dial order.
var SelectorModes = []string{"clock", "travel", "fast-return", "slow-return"}

// Load reads path, decodes it by extension and applies DefaultAndValidate.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, errors.Wrap(err, "unable to load toml configuration")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return Config{}, errors.Errorf("config contains unknown fields: %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, errors.Wrap(err, "config contains unknown fields or bad values")
		}
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	_ = DefaultAndValidate(&cfg)
	return cfg
}

// DefaultAndValidate fills zero values and rejects inconsistent settings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Scheduler.Period <= 0 {
		cfg.Scheduler.Period = 2 * time.Millisecond
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return errors.Errorf("log.format must be 'text' or 'json'")
	}

	if err := validateGPS(&cfg.GPS); err != nil {
		return err
	}
	validateSim(&cfg.Sim)

	if cfg.Compass.Bus < 0 {
		return errors.Errorf("compass.bus must be >= 0")
	}
	if cfg.Compass.Period <= 0 {
		cfg.Compass.Period = 100 * time.Millisecond
	}

	if err := validateSelector(&cfg.Selector); err != nil {
		return err
	}
	if err := validateWaypoint(&cfg.Waypoint); err != nil {
		return err
	}

	if cfg.Journal.Enable && strings.TrimSpace(cfg.Journal.Path) == "" {
		cfg.Journal.Path = "captures.db"
	}

	if cfg.Dial.Refresh <= 0 {
		cfg.Dial.Refresh = 20 * time.Millisecond
	}
	if cfg.Dial.Motion <= 0 {
		cfg.Dial.Motion = 50 * time.Millisecond
	}
	if cfg.Dial.LED.FreqHz < 0 {
		return errors.Errorf("dial.led.freq_hz must be >= 0")
	}
	if cfg.Dial.LED.FreqHz == 0 {
		cfg.Dial.LED.FreqHz = 800000
	}
	if s := cfg.Dial.Stepper; s.Enable {
		pins := map[int]bool{}
		for _, p := range []int{s.A1, s.A2, s.B1, s.B2} {
			if p < 0 {
				return errors.Errorf("dial.stepper pins must be >= 0")
			}
			pins[p] = true
		}
		if len(pins) != 4 {
			return errors.Errorf("dial.stepper pins must be distinct")
		}
	}

	if cfg.Blink.On <= 0 {
		cfg.Blink.On = 100 * time.Millisecond
	}
	if cfg.Blink.Off <= 0 {
		cfg.Blink.Off = 1900 * time.Millisecond
	}

	if cfg.MQTT.Enable && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return errors.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "pocketwatch"
	}
	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = "pocketwatch"
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	for key, d := range map[string]time.Duration{
		"scheduler.period":     cfg.Scheduler.Period,
		"compass.period":       cfg.Compass.Period,
		"selector.refresh":     cfg.Selector.Refresh,
		"selector.settle":      cfg.Selector.Settle,
		"waypoint.min_release": cfg.Waypoint.MinRelease,
		"waypoint.max_release": cfg.Waypoint.MaxRelease,
		"waypoint.fast_hold":   cfg.Waypoint.FastHold,
		"waypoint.slow_hold":   cfg.Waypoint.SlowHold,
		"dial.refresh":         cfg.Dial.Refresh,
		"dial.motion":          cfg.Dial.Motion,
		"blink.on":             cfg.Blink.On,
		"blink.off":            cfg.Blink.Off,
	} {
		if d > maxCadence {
			return errors.Errorf("%s must be <= %s", key, maxCadence)
		}
	}
	return nil
}

func validateGPS(g *GPSConfig) error {
	if g.Baud < 0 {
		return errors.Errorf("gps.baud must be > 0")
	}
	if g.Baud == 0 {
		g.Baud = 9600
	}
	if g.BufferSize <= 0 {
		g.BufferSize = 4096
	}
	if g.Record.Enable && g.Record.Path == "" {
		return errors.Errorf("gps.record.path is required when gps.record.enable is true")
	}
	if g.Replay.Enable {
		if g.Replay.Path == "" {
			return errors.Errorf("gps.replay.path is required when gps.replay.enable is true")
		}
		if g.Replay.Speed == 0 {
			g.Replay.Speed = 1
		}
		if g.Replay.Speed < 0 {
			return errors.Errorf("gps.replay.speed must be > 0")
		}
	}
	if g.Record.Enable && g.Replay.Enable {
		return errors.Errorf("gps.record and gps.replay cannot both be enabled")
	}
	return nil
}

func validateSim(s *SimConfig) {
	if s.CenterLatDeg == 0 && s.CenterLonDeg == 0 {
		s.CenterLatDeg = 39.7392
		s.CenterLonDeg = -104.9903
	}
	if s.AltMeters == 0 {
		s.AltMeters = 1609
	}
	if s.RadiusM <= 0 {
		s.RadiusM = 400
	}
	if s.Period <= 0 {
		s.Period = 10 * time.Minute
	}
	if s.Interval <= 0 {
		s.Interval = time.Second
	}
}

func validateSelector(s *SelectorConfig) error {
	if s.Mode != "" {
		if ModeIndex(s.Mode) < 0 {
			return errors.Errorf("selector.mode must be one of %s", strings.Join(SelectorModes, ", "))
		}
	}
	if s.Choices == 0 {
		s.Choices = len(SelectorModes)
	}
	if s.Choices < 1 || s.Choices > 255 {
		return errors.Errorf("selector.choices must be in [1,255]")
	}
	if s.Ratio < 0 || s.Ratio >= 1 {
		return errors.Errorf("selector.ratio must be in [0,1)")
	}
	if s.Ratio == 0 {
		s.Ratio = 0.2
	}
	if s.Refresh <= 0 {
		s.Refresh = 50 * time.Millisecond
	}
	if s.Settle <= 0 {
		s.Settle = 200 * time.Millisecond
	}
	if s.ADC.Address == 0 {
		s.ADC.Address = 0x48
	}
	if s.ADC.Channel < 0 || s.ADC.Channel > 3 {
		return errors.Errorf("selector.adc.channel must be in [0,3]")
	}
	return nil
}

// ModeIndex maps a selector.mode name to its dial position, or -1.
func ModeIndex(name string) int {
	for i, m := range SelectorModes {
		if m == name {
			return i
		}
	}
	return -1
}

func validateWaypoint(w *WaypointConfig) error {
	if strings.TrimSpace(w.Path) == "" {
		w.Path = "waypoints.bin"
	}
	if w.ButtonPin < 0 {
		return errors.Errorf("waypoint.button_pin must be >= 0")
	}
	if w.MinRelease <= 0 {
		w.MinRelease = 50 * time.Millisecond
	}
	if w.MaxRelease <= 0 {
		w.MaxRelease = 1500 * time.Millisecond
	}
	if w.FastHold <= 0 {
		w.FastHold = 500 * time.Millisecond
	}
	if w.SlowHold <= 0 {
		w.SlowHold = 2 * time.Second
	}
	if w.FastHolds == 0 {
		w.FastHolds = 3
	}
	if w.SlowHolds == 0 {
		w.SlowHolds = 3
	}
	if w.MinRelease >= w.MaxRelease {
		return errors.Errorf("waypoint.min_release must be < waypoint.max_release")
	}
	if w.FastHold >= w.SlowHold {
		return errors.Errorf("waypoint.fast_hold must be < waypoint.slow_hold")
	}
	if w.FastHolds < 1 || w.FastHolds > 255 || w.SlowHolds < 1 || w.SlowHolds > 255 {
		return errors.Errorf("waypoint.fast_holds and waypoint.slow_holds must be in [1,255]")
	}
	return nil
}

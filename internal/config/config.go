// Package config loads the pad's TOML configuration and environment overrides.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	colorful "github.com/lucasb-eyer/go-colorful"

	"ScribblePad/internal/state"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const EnvPrefix = "SCRIBBLE_"

type Config struct {
	Stroke  Stroke  `toml:"stroke"`
	Input   Input   `toml:"input"`
	Surface Surface `toml:"surface"`
	Remote  Remote  `toml:"remote"`
	Assets  Assets  `toml:"assets"`
	Log     Log     `toml:"log"`
}

type Stroke struct {
	Color      string  `toml:"color"`
	Width      float64 `toml:"width"`
	ClosingDot bool    `toml:"closing_dot"`
}

type Input struct {
	Pointer     bool     `toml:"pointer"`
	Touch       bool     `toml:"touch"`
	DedupWindow Duration `toml:"dedup_window"`
}

type Surface struct {
	MaxDimension int `toml:"max_dimension"`
	// Used by the headless pad, which has no window to measure.
	Width      float64 `toml:"width"`
	Height     float64 `toml:"height"`
	PixelRatio float64 `toml:"pixel_ratio"`
}

type Remote struct {
	Enabled   bool   `toml:"enabled"`
	Listen    string `toml:"listen"`
	Advertise bool   `toml:"advertise"`
	Service   string `toml:"service"`
}

type Assets struct {
	CacheName string   `toml:"cache_name"`
	Upstream  string   `toml:"upstream"`
	Precache  []string `toml:"precache"`
}

type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Duration reads "500ms"-style strings.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Stroke: Stroke{Color: "#000000", Width: 4, ClosingDot: true},
		Input:  Input{Pointer: true, Touch: true, DedupWindow: Duration{state.DefaultDedupWindow}},
		Surface: Surface{
			MaxDimension: 16384,
			Width:        1024,
			Height:       768,
			PixelRatio:   1,
		},
		Remote: Remote{Enabled: true, Listen: ":8888", Advertise: true, Service: "_scribblepad._tcp"},
		Assets: Assets{
			CacheName: "scribble-v1",
			Precache:  []string{"/", "/index.html", "/favicon.svg", "/sw.js", "/main.js", "/install-sw.js"},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults, without the environment.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"STROKE_COLOR":    &c.Stroke.Color,
		"REMOTE_LISTEN":   &c.Remote.Listen,
		"LOG_LEVEL":       &c.Log.Level,
		"ASSETS_UPSTREAM": &c.Assets.Upstream,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"REMOTE_ENABLED":   &c.Remote.Enabled,
		"REMOTE_ADVERTISE": &c.Remote.Advertise,
		"LOG_DEVELOPMENT":  &c.Log.Development,
	}
	for key, dst := range flags {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalid, EnvPrefix, key, v, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvPrefix + "STROKE_WIDTH"); ok {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sSTROKE_WIDTH=%q: %v", ErrInvalid, EnvPrefix, v, err)
		}
		c.Stroke.Width = w
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	if _, err := c.Stroke.Style(); err != nil {
		problems = append(problems, err.Error())
	}
	if !c.Input.Pointer && !c.Input.Touch {
		problems = append(problems, "at least one input channel must be enabled")
	}
	if c.Input.DedupWindow.Duration < 0 {
		problems = append(problems, "input.dedup_window must not be negative")
	}
	if c.Surface.MaxDimension <= 0 {
		problems = append(problems, "surface.max_dimension must be positive")
	}
	if c.Remote.Enabled && c.Remote.Listen == "" {
		problems = append(problems, "remote.listen is required when remote input is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Style converts the stroke section into a tracker style.
func (s Stroke) Style() (state.Style, error) {
	if s.Width <= 0 {
		return state.Style{}, fmt.Errorf("stroke.width must be positive, got %v", s.Width)
	}
	c, err := ParseColor(s.Color)
	if err != nil {
		return state.Style{}, err
	}
	return state.Style{Color: c, Width: s.Width}, nil
}

// ParseColor accepts #rgb or #rrggbb and the name "black".
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "black") || s == "" {
		return color.Black, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("stroke.color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Channels maps the input toggles onto tracker channels.
func (in Input) Channels() state.Channel {
	var ch state.Channel
	if in.Pointer {
		ch |= state.ChannelPointer
	}
	if in.Touch {
		ch |= state.ChannelTouch
	}
	return ch
}

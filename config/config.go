// Package config loads framekit settings from TOML with environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lixenwraith/framekit/engine"
	"github.com/lixenwraith/framekit/logging"
	"github.com/lixenwraith/framekit/resize"
	"github.com/lixenwraith/framekit/terminal"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Present modes
const (
	ModeFullscreen = "fullscreen"
	ModeInline     = "inline"
)

// Config is the full settings tree
type Config struct {
	Render  RenderConfig  `toml:"render"`
	Present PresentConfig `toml:"present"`
	Resize  ResizeConfig  `toml:"resize"`
	Layout  LayoutConfig  `toml:"layout"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

type RenderConfig struct {
	MergeGap int `toml:"merge_gap"`
}

type PresentConfig struct {
	Mode         string `toml:"mode"`
	InlineHeight int    `toml:"inline_height"`
	Sync         string `toml:"sync"`
	Color        string `toml:"color"`
}

// ResizeConfig holds coalescer timing; durations are strings such as "60ms"
type ResizeConfig struct {
	SteadyDelay   time.Duration `toml:"steady_delay"`
	BurstDelay    time.Duration `toml:"burst_delay"`
	HardDeadline  time.Duration `toml:"hard_deadline"`
	BurstInterval time.Duration `toml:"burst_interval"`
	HazardLambda  float64       `toml:"hazard_lambda"`
}

type LayoutConfig struct {
	ForceFull bool `toml:"force_full"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the documented defaults
func Default() Config {
	return Config{
		Render: RenderConfig{MergeGap: DefaultMergeGap},
		Present: PresentConfig{
			Mode:         DefaultPresentMode,
			InlineHeight: DefaultInlineHeight,
			Sync:         DefaultSync,
			Color:        DefaultColor,
		},
		Resize: ResizeConfig{
			SteadyDelay:   DefaultSteadyDelay,
			BurstDelay:    DefaultBurstDelay,
			HardDeadline:  DefaultHardDeadline,
			BurstInterval: DefaultBurstInterval,
			HazardLambda:  DefaultHazardLambda,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads path over the defaults, applies environment overrides and validates
// An empty path skips the file
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(string(data)); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults without consulting the environment
func Parse(data string) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(data string) error {
	md, err := toml.Decode(data, c)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv folds the FRAMEKIT_* overrides into c
func (c *Config) ApplyEnv(getenv func(string) string) {
	switch strings.ToLower(getenv(EnvFullLayout)) {
	case "1", "true", "yes":
		c.Layout.ForceFull = true
	}
	if v := getenv(EnvSync); v != "" {
		c.Present.Sync = v
	}
	if v := getenv(EnvColor); v != "" {
		c.Present.Color = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects values the pipeline cannot run with
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Render.MergeGap < 0 {
		bad("render.merge_gap %d is negative", c.Render.MergeGap)
	}

	switch c.Present.Mode {
	case ModeFullscreen:
	case ModeInline:
		if c.Present.InlineHeight < 1 {
			bad("present.inline_height %d must be positive", c.Present.InlineHeight)
		}
	default:
		bad("present.mode %q, want %s or %s", c.Present.Mode, ModeFullscreen, ModeInline)
	}
	if _, err := terminal.ParseSyncMode(c.Present.Sync); err != nil {
		bad("present.sync: %v", err)
	}
	if _, err := c.colorTier(); err != nil {
		bad("present.color: %v", err)
	}

	r := c.Resize
	if r.SteadyDelay < 0 || r.BurstDelay < 0 || r.HardDeadline < 0 {
		bad("resize delays must not be negative")
	}
	if r.HardDeadline > 0 && r.HardDeadline < r.SteadyDelay {
		bad("resize.hard_deadline %s is shorter than steady_delay %s", r.HardDeadline, r.SteadyDelay)
	}
	if r.BurstInterval <= 0 {
		bad("resize.burst_interval must be positive")
	}
	if r.HazardLambda <= 1 {
		bad("resize.hazard_lambda %.2f must exceed 1", r.HazardLambda)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	return errors.Join(errs...)
}

// colorTier returns nil for "auto"
func (c Config) colorTier() (*terminal.ColorTier, error) {
	if s := strings.ToLower(strings.TrimSpace(c.Present.Color)); s == "" || s == "auto" {
		return nil, nil
	}
	t, err := terminal.ParseColorTier(c.Present.Color)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Overrides returns the capability overrides requested by present.sync and present.color
func (c Config) Overrides() terminal.Overrides {
	sync, _ := terminal.ParseSyncMode(c.Present.Sync)
	tier, _ := c.colorTier()
	return terminal.Overrides{Sync: sync, Tier: tier}
}

// Inline reports whether the presenter draws in an inline region
func (c Config) Inline() bool { return c.Present.Mode == ModeInline }

// CoalescerConfig maps the resize section onto coalescer defaults
func (c Config) CoalescerConfig() resize.Config {
	rc := resize.DefaultConfig()
	rc.SteadyDelay = c.Resize.SteadyDelay
	rc.BurstDelay = c.Resize.BurstDelay
	rc.HardDeadline = c.Resize.HardDeadline
	rc.BurstInterval = c.Resize.BurstInterval
	rc.Detector.HazardLambda = c.Resize.HazardLambda
	return rc
}

// SessionConfig returns the frame loop settings
func (c Config) SessionConfig() engine.Config {
	return engine.Config{
		Resize:   c.CoalescerConfig(),
		MergeGap: c.Render.MergeGap,
	}
}

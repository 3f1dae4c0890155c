package crimsonfx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// Viewport is the host drawable size in logical pixels plus its device
// pixel ratio.
type Viewport struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	PixelRatio float64 `toml:"pixel_ratio"`
}

// DefaultViewport matches the stock 1280x720 canvas at ratio 1.
func DefaultViewport() Viewport {
	return Viewport{Width: 1280, Height: 720, PixelRatio: 1}
}

func (v Viewport) normalize() Viewport {
	d := DefaultViewport()
	if v.Width <= 0 || v.Height <= 0 {
		v.Width, v.Height = d.Width, d.Height
	}
	if v.PixelRatio <= 0 || math.IsNaN(v.PixelRatio) || math.IsInf(v.PixelRatio, 0) {
		v.PixelRatio = d.PixelRatio
	}
	return v
}

// Config is the on-disk engine configuration.
type Config struct {
	// Preset, if set, is applied before Params.
	Preset string       `toml:"preset,omitempty"`
	Params RenderParams `toml:"params"`

	SafeMode bool     `toml:"safe_mode"`
	Viewport Viewport `toml:"viewport"`

	// AdvancedPasses appends the optional warp, scanline, feedback and
	// bloom passes to the chain.
	AdvancedPasses bool `toml:"advanced_passes"`

	// RefreshRate is the display refresh in Hz used when no host vsync is
	// available.
	RefreshRate float64 `toml:"refresh_rate"`

	// AudioGain scales samples entering the envelope analyzer.
	AudioGain float64 `toml:"audio_gain"`
}

// ErrUnknownPreset is returned when a config names a preset that does not
// exist.
var ErrUnknownPreset = errors.New("crimsonfx: unknown preset")

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Params:      DefaultParams(),
		Viewport:    DefaultViewport(),
		RefreshRate: 60,
		AudioGain:   1,
	}
}

func (c Config) normalize() Config {
	c.Params = c.Params.Sanitize()
	c.Viewport = c.Viewport.normalize()
	if c.RefreshRate <= 0 || math.IsNaN(c.RefreshRate) || math.IsInf(c.RefreshRate, 0) {
		c.RefreshRate = 60
	}
	if c.AudioGain < 0 || math.IsNaN(c.AudioGain) || math.IsInf(c.AudioGain, 0) {
		c.AudioGain = 1
	}
	return c
}

// DecodeConfig reads a TOML config. Missing keys keep their defaults; unknown
// keys are an error so typos do not pass silently. When a preset is named,
// its values replace the defaults and explicit params keys still override it.
func DecodeConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("crimsonfx: read config: %w", err)
	}

	var head struct {
		Preset string `toml:"preset"`
	}
	if err := toml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("crimsonfx: parse config: %w", err)
	}

	cfg := DefaultConfig()
	if head.Preset != "" {
		pr, ok := LookupPreset(head.Preset)
		if !ok {
			return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, head.Preset)
		}
		cfg.Params = pr.Apply(cfg.Params)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("crimsonfx: parse config: %w", err)
	}
	return cfg.normalize(), nil
}

// LoadConfig reads the config file at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("crimsonfx: open config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// SaveConfig writes cfg to path, replacing it atomically.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("crimsonfx: encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("crimsonfx: write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("crimsonfx: write config: %w", err)
	}
	return nil
}

// ConfigDebounce is how long WatchConfig waits after the last change event
// before reloading. Editors often write a file in several steps.
const ConfigDebounce = 100 * time.Millisecond

// WatchConfig calls fn with the reloaded config each time the file at path
// changes, until ctx is done. A file that fails to parse is logged and
// skipped; fn only ever sees valid configs.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temp file over the original are picked up.
func WatchConfig(ctx context.Context, path string, fn func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("crimsonfx: watch config: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("crimsonfx: watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("crimsonfx: watch config: %w", err)
	}
	log := Logger().With(slog.String("component", "config"), slog.String("path", target))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, err := filepath.Abs(ev.Name); err != nil || name != target {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(ConfigDebounce)
			} else {
				timer.Reset(ConfigDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := LoadConfig(target)
			if err != nil {
				log.Warn("config reload failed", "err", err)
				continue
			}
			log.Debug("config reloaded")
			fn(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "err", err)
		}
	}
}

//go:build !nogpu

// Command crimsonfx runs the effect chain on an image sequence, driven by the
// envelope of a WAV file, and reports telemetry to the log.
//
// Without a window there is nothing to look at, so the final pass renders
// offscreen; the command is for soak tests, profiling and config tuning.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/crimsonfx"
	"github.com/gogpu/crimsonfx/audio"
	"github.com/gogpu/crimsonfx/internal/gpu"
	"github.com/gogpu/crimsonfx/scheduler"
)

type options struct {
	config   string
	frames   string
	fps      float64
	audio    string
	preset   string
	headless bool
	advanced bool
	safe     bool
	duration time.Duration
	stats    time.Duration
	verbose  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "TOML config file, reloaded on change")
	flag.StringVar(&opts.frames, "frames", "", "directory of images played as the video source")
	flag.Float64Var(&opts.fps, "fps", 30, "image sequence frame rate")
	flag.StringVar(&opts.audio, "audio", "", "WAV file driving the audio envelope (looped)")
	flag.StringVar(&opts.preset, "preset", "", "preset name or label")
	flag.BoolVar(&opts.headless, "headless", false, "use the noop GPU backend")
	flag.BoolVar(&opts.advanced, "advanced", false, "enable the advanced passes")
	flag.BoolVar(&opts.safe, "safe", false, "start in safe mode")
	flag.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flag.DurationVar(&opts.stats, "stats", 2*time.Second, "telemetry log interval")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("crimsonfx: %v", err)
	}
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	crimsonfx.SetLogger(logger)

	cfg := crimsonfx.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = crimsonfx.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	cfg, err := applyOverrides(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	source, err := loadSource(opts.frames, opts.fps, cfg.Viewport)
	if err != nil {
		return err
	}

	renderer, err := crimsonfx.OpenRenderer(crimsonfx.RendererConfig{
		Headless: opts.headless,
		Width:    cfg.Viewport.Width,
		Height:   cfg.Viewport.Height,
		Advanced: cfg.AdvancedPasses,
	})
	if err != nil {
		return err
	}
	renderer.SetSource(source)

	bus := audio.NewBus()
	bus.SetGain(cfg.AudioGain)
	if opts.audio != "" {
		track, err := audio.OpenWAV(opts.audio, true)
		if err != nil {
			renderer.Destroy()
			return err
		}
		defer track.Close()
		go func() {
			if err := audio.Pump(ctx, track.Streamer, track.Format.SampleRate, bus); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("audio stopped", "err", err)
			}
		}()
	}

	sched := scheduler.New(
		scheduler.WithRefresh(scheduler.NewTickerRefresh(cfg.RefreshRate)),
		scheduler.WithLogger(logger),
	)
	engine, err := crimsonfx.NewEngine(renderer, sched, bus,
		crimsonfx.WithParams(cfg.Params),
		crimsonfx.WithViewport(cfg.Viewport),
		crimsonfx.WithSafeMode(cfg.SafeMode),
	)
	if err != nil {
		renderer.Destroy()
		return err
	}
	defer engine.Close()

	if opts.config != "" {
		go func() {
			if err := crimsonfx.WatchConfig(ctx, opts.config, reloadConfig(engine, opts, logger)); err != nil {
				logger.Warn("config watch stopped", "err", err)
			}
		}()
	}

	go reportStats(ctx, logger, engine, opts.stats)

	logger.Info("running", "passes", renderer.PassNames(), "refresh_hz", cfg.RefreshRate)
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("render loop: %w", err)
	}
	s := renderer.Stats()
	logger.Info("done",
		"telemetry", engine.Telemetry().String(),
		"frames", s.Frames, "skipped", s.Skipped, "pool", s.Pool,
		"frame_hit_rate", s.FrameHitRate)
	return nil
}

// applyOverrides layers the command line switches over a loaded config. It
// runs at startup and on every reload so the flags keep winning.
func applyOverrides(cfg crimsonfx.Config, opts options) (crimsonfx.Config, error) {
	if opts.safe {
		cfg.SafeMode = true
	}
	if opts.advanced {
		cfg.AdvancedPasses = true
	}
	if opts.preset != "" {
		pr, ok := crimsonfx.LookupPreset(opts.preset)
		if !ok {
			return cfg, fmt.Errorf("%w: %q", crimsonfx.ErrUnknownPreset, opts.preset)
		}
		cfg.Preset = pr.Name
		cfg.Params = pr.Apply(cfg.Params)
	}
	return cfg, nil
}

// reloadConfig returns the WatchConfig callback: flags over the new file,
// then params, safe mode, viewport and audio gain into the engine.
func reloadConfig(e *crimsonfx.Engine, opts options, logger *slog.Logger) func(crimsonfx.Config) {
	return func(cfg crimsonfx.Config) {
		cfg, err := applyOverrides(cfg, opts)
		if err != nil {
			logger.Warn("config reload ignored", "err", err)
			return
		}
		e.ApplyConfig(cfg)
		logger.Info("config reloaded", "preset", cfg.Preset, "safe_mode", cfg.SafeMode, "audio_gain", cfg.AudioGain)
	}
}

func reportStats(ctx context.Context, logger *slog.Logger, e *crimsonfx.Engine, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			logger.Info("stats", "telemetry", e.Telemetry().String())
		}
	}
}

// loadSource returns the image sequence in dir, or a generated test pattern
// when dir is empty.
func loadSource(dir string, fps float64, vp crimsonfx.Viewport) (crimsonfx.PixelSource, error) {
	if dir == "" {
		return gpu.NewSequenceSource(testPattern(vp.Width/2, vp.Height/2, 60), 30), nil
	}
	frames, err := loadFrames(dir)
	if err != nil {
		return nil, err
	}
	return gpu.NewSequenceSource(frames, fps), nil
}

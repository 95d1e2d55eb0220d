package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/herzi/mb-audio-engine/engine"
	"github.com/herzi/mb-audio-engine/internal/progress"
	"github.com/herzi/mb-audio-engine/internal/term"
	"github.com/herzi/mb-audio-engine/sfx"
)

var playCmd = &cobra.Command{
	Use:   "play [BACKGROUND] [EFFECT...]",
	Short: "Loop a background track and mix effects into it",
	Long: `Play BACKGROUND in a gapless loop until interrupted. Every EFFECT (or every
variation of the sfx registry given with --sfx) becomes a slot that the effect
timer, a cue or the 'e' key splices into the running mix.`,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.String("backend", "soft", "graph backend: soft or gst")
	f.String("sink", "auto", "output: auto, oto, null or wav")
	f.StringP("output", "o", "", "file written by the wav sink")
	f.String("element", "autoaudiosink", "GStreamer sink element (gst backend)")
	f.Int("rate", 0, "output sample rate (0 takes the background's rate)")
	f.Duration("buffer", 0, "device buffer size")
	f.Duration("effect-interval", 0, "effect timer period, negative disables it")
	f.Bool("effect-once", false, "fire the effect timer only once")
	f.Int("max-effects", 0, "maximum simultaneously attached effects")
	f.Float32("bg-volume", 1, "background volume")
	f.Float32("fx-volume", 1, "effect volume")
	f.Duration("duration", 0, "stop after this long")
	f.StringSlice("cue", nil, "play an effect at an offset: id@1.5s")
	f.Bool("no-progress", false, "do not show the progress display")

	bindFlags(v, f, map[string]string{
		"backend":                    "backend",
		"output.sink":                "sink",
		"output.file":                "output",
		"output.element":             "element",
		"output.sample_rate":         "rate",
		"output.buffer":              "buffer",
		"playback.effect_interval":   "effect-interval",
		"playback.effect_once":       "effect-once",
		"playback.max_effects":       "max-effects",
		"playback.background_volume": "bg-volume",
		"playback.effect_volume":     "fx-volume",
		"playback.duration":          "duration",
		"cues":                       "cue",
	})
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Background = args[0]
		if len(args) > 1 {
			cfg.Effects = args[1:]
		}
	}
	if cfg.Background == "" {
		return fmt.Errorf("%w: no background track", errUsage)
	}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); noProgress {
		cfg.UI.Progress = false
	}
	if cfg.UI.Progress {
		if err := term.Check(os.Stdout); err != nil {
			return fmt.Errorf("%w: progress display needs a terminal (use --no-progress): %w", engine.ErrCapability, err)
		}
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	cues, err := cfg.ParseCues()
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	graph, err := newGraph(graphOptions{cfg: cfg, registry: registry, log: log})
	if err != nil {
		return err
	}

	opts := engine.Options{
		ProgressInterval: cfg.Playback.ProgressInterval,
		EffectInterval:   cfg.Playback.EffectInterval,
		EffectOnce:       cfg.Playback.EffectOnce,
		Logger:           log,
	}
	if registry == nil {
		opts.EffectInterval = -1
		if len(cues) > 0 {
			log.Warn().Int("cues", len(cues)).Msg("ignoring cues without effects")
		}
	} else {
		opts.Picker = registry
		if len(cues) > 0 {
			opts.Scheduler = sfx.NewScheduler(registry, cues...)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cfg.Playback.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	ctx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	var (
		controller *engine.Controller
		display    *progress.Display
	)
	if cfg.UI.Progress {
		trigger := func() { controller.TriggerEffect() }
		display = progress.NewDisplay(progress.New(filepath.Base(cfg.Background), trigger, interrupt))
		opts.Reporter = display
	}

	controller, err = engine.New(graph, opts)
	if err != nil {
		_ = graph.Close()
		return err
	}
	if display == nil {
		return report(controller, controller.Run(ctx))
	}

	// The display owns the terminal, the controller runs beside it.
	done := make(chan error, 1)
	go func() {
		err := controller.Run(ctx)
		display.Close()
		done <- err
	}()
	if err := display.Run(); err != nil {
		log.Error().Err(err).Msg("progress display failed")
	}
	interrupt()
	return report(controller, <-done)
}

// loadRegistry returns the configured effects, or nil when there are none.
func loadRegistry() (*sfx.Registry, error) {
	switch {
	case cfg.Sfx != "" && len(cfg.Effects) > 0:
		return nil, fmt.Errorf("%w: effect files and --sfx are exclusive", errUsage)
	case cfg.Sfx != "":
		return sfx.LoadFolder(cfg.Sfx, log)
	case len(cfg.Effects) > 0:
		return sfx.FromPaths(cfg.Effects, log)
	}
	return nil, nil
}

func report(c *engine.Controller, err error) error {
	stats := c.Stats()
	ev := log.Info()
	var fatal *engine.FatalError
	if errors.As(err, &fatal) {
		ev = log.Error().Err(err)
	}
	ev.Int("loops", stats.Loops).
		Int("attaches", stats.Attaches).
		Int("detaches", stats.Detaches).
		Int("failures", stats.Failures).
		Msg("playback stopped")
	return err
}

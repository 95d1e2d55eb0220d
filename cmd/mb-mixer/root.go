package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/herzi/mb-audio-engine/engine"
	"github.com/herzi/mb-audio-engine/internal/config"
)

// Exit statuses.
const (
	exitOK         = 0
	exitFatal      = 1
	exitUsage      = 2
	exitCapability = 3
)

var errUsage = errors.New("usage")

var (
	cfgFile string
	cfg     config.Config
	v       = config.New()
	log     = zerolog.Nop()
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "mb-mixer",
	Short: "Loop a background track and splice sound effects into it",
	Long: `mb-mixer plays a background track in a gapless loop and mixes short sound
effects into it while it plays. Effects are triggered by a timer, by cues
or from the keyboard.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default ./mb-mixer.yaml or ~/.config/mb-mixer.yaml)")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	f.String("log-format", "console", "log format: console or json")
	f.String("log-file", "", "write logs to this file instead of stderr")
	f.String("sfx", "", "directory with sfx.json or sfx.yaml")

	bindFlags(v, f, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.file":   "log-file",
		"sfx":        "sfx",
	})

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	log, logFile, err = newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("loaded config")
	}
	return nil
}

func closeLog() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	log = zerolog.Nop()
}

// newLogger builds the logger described by c. The returned closer is non-nil
// when logs go to a file.
func newLogger(c config.LogConfig, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	var (
		out    = stderr
		closer io.Closer
	)
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = f, f
	}
	if c.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: c.File != ""}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, engine.ErrCapability):
		return exitCapability
	case errors.Is(err, errUsage), errors.Is(err, config.ErrInvalid):
		return exitUsage
	}
	return exitFatal
}

func execute() int {
	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "mb-mixer: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Run 'mb-mixer --help' for usage.")
		}
	}
	return exitCode(err)
}

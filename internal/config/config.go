// Package config provides configuration types and defaults for mb-mixer.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/herzi/mb-audio-engine/sfx"
)

// EnvPrefix prefixes environment overrides: MBMIXER_PLAYBACK_EFFECT_INTERVAL=5s.
const EnvPrefix = "MBMIXER"

// FileName is the config file looked up in the working directory and
// $HOME/.config/mb-mixer.
const FileName = "mb-mixer"

var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for mb-mixer.
type Config struct {
	Background string         `mapstructure:"background"`
	Effects    []string       `mapstructure:"effects"`
	Sfx        string         `mapstructure:"sfx"` // directory with sfx.json or sfx.yaml
	Cues       []string       `mapstructure:"cues"` // id@offset, e.g. door-open@1.5s
	Backend    string         `mapstructure:"backend"`
	Output     OutputConfig   `mapstructure:"output"`
	Playback   PlaybackConfig `mapstructure:"playback"`
	Log        LogConfig      `mapstructure:"log"`
	UI         UIConfig       `mapstructure:"ui"`
}

// OutputConfig selects where the mixed audio goes.
type OutputConfig struct {
	// Sink is one of "auto", "oto", "null" or "wav".
	Sink string `mapstructure:"sink"`
	// File is the target of the wav sink.
	File string `mapstructure:"file"`
	// SampleRate of the output. 0 takes the background's rate.
	SampleRate int           `mapstructure:"sample_rate"`
	Buffer     time.Duration `mapstructure:"buffer"`
	// Element is the GStreamer sink element of the gst backend.
	Element string `mapstructure:"element"`
}

type PlaybackConfig struct {
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	// EffectInterval is the period of the effect timer; negative disables it.
	EffectInterval time.Duration `mapstructure:"effect_interval"`
	EffectOnce     bool          `mapstructure:"effect_once"`
	// MaxEffects caps simultaneously attached effects. 0 allows one per slot.
	MaxEffects       int     `mapstructure:"max_effects"`
	BackgroundVolume float32 `mapstructure:"background_volume"`
	EffectVolume     float32 `mapstructure:"effect_volume"`
	// Duration stops playback after the given time. 0 plays until interrupted.
	Duration time.Duration `mapstructure:"duration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`
}

type UIConfig struct {
	Progress bool `mapstructure:"progress"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Backend: "soft",
		Output: OutputConfig{
			Sink:    "auto",
			Buffer:  100 * time.Millisecond,
			Element: "autoaudiosink",
		},
		Playback: PlaybackConfig{
			ProgressInterval: 50 * time.Millisecond,
			EffectInterval:   2000 * time.Millisecond,
			BackgroundVolume: 1,
			EffectVolume:     1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Progress: true,
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables and flags can override it.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("background", d.Background)
	v.SetDefault("effects", d.Effects)
	v.SetDefault("sfx", d.Sfx)
	v.SetDefault("cues", d.Cues)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("output.sink", d.Output.Sink)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.sample_rate", d.Output.SampleRate)
	v.SetDefault("output.buffer", d.Output.Buffer)
	v.SetDefault("output.element", d.Output.Element)
	v.SetDefault("playback.progress_interval", d.Playback.ProgressInterval)
	v.SetDefault("playback.effect_interval", d.Playback.EffectInterval)
	v.SetDefault("playback.effect_once", d.Playback.EffectOnce)
	v.SetDefault("playback.max_effects", d.Playback.MaxEffects)
	v.SetDefault("playback.background_volume", d.Playback.BackgroundVolume)
	v.SetDefault("playback.effect_volume", d.Playback.EffectVolume)
	v.SetDefault("playback.duration", d.Playback.Duration)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("ui.progress", d.UI.Progress)
}

// New returns a viper instance with defaults, environment overrides and the
// config file search path set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config")
	return v
}

// Load reads the optional config file and decodes v into a validated Config.
// An explicit file that cannot be read is an error, a missing default file is not.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Backend {
	case "soft", "gst":
	default:
		return fmt.Errorf("%w: backend %q: want soft or gst", ErrInvalid, c.Backend)
	}
	switch c.Output.Sink {
	case "auto", "oto", "null":
	case "wav":
		if c.Output.File == "" {
			return fmt.Errorf("%w: output.sink wav needs output.file", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: output.sink %q: want auto, oto, null or wav", ErrInvalid, c.Output.Sink)
	}
	if c.Output.SampleRate < 0 {
		return fmt.Errorf("%w: output.sample_rate %d", ErrInvalid, c.Output.SampleRate)
	}
	if c.Output.Buffer < 0 {
		return fmt.Errorf("%w: output.buffer %s", ErrInvalid, c.Output.Buffer)
	}
	if c.Playback.ProgressInterval < 0 {
		return fmt.Errorf("%w: playback.progress_interval %s", ErrInvalid, c.Playback.ProgressInterval)
	}
	if c.Playback.MaxEffects < 0 {
		return fmt.Errorf("%w: playback.max_effects %d", ErrInvalid, c.Playback.MaxEffects)
	}
	if c.Playback.BackgroundVolume < 0 || c.Playback.EffectVolume < 0 {
		return fmt.Errorf("%w: volumes must not be negative", ErrInvalid)
	}
	if c.Playback.Duration < 0 {
		return fmt.Errorf("%w: playback.duration %s", ErrInvalid, c.Playback.Duration)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format %q: want console or json", ErrInvalid, c.Log.Format)
	}
	if _, err := c.ParseCues(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ParseCues parses the configured cue list.
func (c Config) ParseCues() ([]sfx.Cue, error) {
	cues := make([]sfx.Cue, 0, len(c.Cues))
	for _, s := range c.Cues {
		cue, err := sfx.ParseCue(s)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# mb-mixer configuration

# Background track, looped until interrupted
# background: music/loop.ogg

# Effect files, each one a slot that can be spliced into the mix
# effects:
#   - sounds/door.wav

# Or a directory with sfx.json / sfx.yaml
# sfx: sounds/

# Cues play an effect id at a playback offset
# cues:
#   - door-open@1.5s

backend: soft            # soft or gst

output:
  sink: auto             # auto, oto, null or wav
  # file: out.wav        # target of the wav sink
  sample_rate: 0         # 0 takes the background's rate
  buffer: 100ms
  element: autoaudiosink # GStreamer sink element (gst backend)

playback:
  progress_interval: 50ms
  effect_interval: 2s    # negative disables the effect timer
  effect_once: false
  max_effects: 0         # 0 allows one per slot
  background_volume: 1
  effect_volume: 1
  duration: 0s           # 0 plays until interrupted

log:
  level: info
  format: console        # console or json
  # file: mb-mixer.log

ui:
  progress: true
`
}

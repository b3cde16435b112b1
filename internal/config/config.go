// Package config provides configuration management for retest.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (RETEST_ prefix)
//  3. Config file (.retest.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/retest/internal/filter"
	"github.com/hupe1980/retest/internal/outdiff"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// MatchAll is a suffix entry that disables suffix filtering.
const MatchAll = "*"

// Config represents the global configuration for retest.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Suffixes restricts which changed files trigger a run. Empty, or a
	// list containing "*", matches every file.
	Suffixes []string `mapstructure:"suffixes" json:"suffixes"`

	// Events lists the event kinds that reach suffix matching.
	// Valid values: created, modified, deleted, other.
	Events []string `mapstructure:"events" json:"events"`

	// ExcludeDirs lists directory names that are not watched.
	ExcludeDirs []string `mapstructure:"exclude-dirs" json:"excludeDirs"`

	// Granularity selects the test output diff strategy: char or line.
	Granularity string `mapstructure:"granularity" json:"granularity"`

	// Debounce is the quiet period before a change triggers a run.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`

	// ArmWindow is how long after a manual rebuild a second interrupt
	// stops the watcher.
	ArmWindow time.Duration `mapstructure:"arm-window" json:"armWindow"`

	// RunOnStart runs the pipeline once when watching begins.
	RunOnStart bool `mapstructure:"run-on-start" json:"runOnStart"`

	// Timeout limits each build and test command. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:    LogLevelInfo,
		LogFormat:   LogFormatText,
		NoColor:     false,
		Quiet:       false,
		Suffixes:    []string{".cpp", ".h"},
		Events:      []string{filter.KindModified.String()},
		ExcludeDirs: []string{".git"},
		Granularity: string(outdiff.GranularityChar),
		Debounce:    100 * time.Millisecond,
		ArmWindow:   time.Second,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if _, err := outdiff.ParseGranularity(c.Granularity); err != nil {
		return err
	}

	if len(c.Events) == 0 {
		return fmt.Errorf("at least one event kind is required")
	}

	if _, err := filter.ParseEventKinds(c.Events); err != nil {
		return err
	}

	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce)
	}

	if c.ArmWindow <= 0 {
		return fmt.Errorf("invalid arm window %s: must be positive", c.ArmWindow)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must not be negative", c.Timeout)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// EffectiveSuffixes returns the suffix list for the path filter. Blank
// entries are dropped and "*" yields an empty list, which matches all files.
func (c *Config) EffectiveSuffixes() []string {
	out := make([]string, 0, len(c.Suffixes))

	for _, s := range c.Suffixes {
		s = strings.TrimSpace(s)

		if s == MatchAll {
			return nil
		}

		if s != "" {
			out = append(out, s)
		}
	}

	return out
}

// PathFilter builds the filter described by Suffixes and Events.
func (c *Config) PathFilter() (*filter.PathFilter, error) {
	kinds, err := filter.ParseEventKinds(c.Events)
	if err != nil {
		return nil, err
	}

	return filter.New(c.EffectiveSuffixes(), kinds...), nil
}

// Differ builds the diff strategy described by Granularity.
func (c *Config) Differ() (outdiff.Differ, error) {
	g, err := outdiff.ParseGranularity(c.Granularity)
	if err != nil {
		return nil, err
	}

	return outdiff.New(g)
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("suffixes", d.Suffixes)
	v.SetDefault("events", d.Events)
	v.SetDefault("exclude-dirs", d.ExcludeDirs)
	v.SetDefault("granularity", d.Granularity)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("arm-window", d.ArmWindow)
	v.SetDefault("run-on-start", d.RunOnStart)
	v.SetDefault("timeout", d.Timeout)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("RETEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".retest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "retest"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}

// Package config loads the diff-engine configuration file named in spec
// §6's "Config file" and the sibling pipeline settings every mwpersist
// subcommand shares (window size, thresholds, observability addresses).
package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/mwpersist/internal/tokendiff"
)

// Sentinel validation errors.
var (
	ErrInvalidWindowSize     = errors.New("config: window size must be non-negative")
	ErrInvalidRevertRadius   = errors.New("config: revert radius must be non-negative")
	ErrInvalidMinPersisted   = errors.New("config: min persisted must be non-negative")
	ErrInvalidMinVisibleDays = errors.New("config: min visible days must be non-negative")
	ErrInvalidMaxChars       = errors.New("config: max chars must be non-negative")
	ErrUnknownDiffEngine     = errors.New("config: unknown diff_engine name")
	ErrMissingPattern        = errors.New("config: regexp diff_engine requires an options.pattern string")
)

// Config holds every setting a mwpersist subcommand may consult, whether
// supplied via --config file, environment variable, or flag default.
type Config struct {
	DiffEngine    DiffEngineConfig    `mapstructure:"diff_engine"`
	Persistence   PersistenceConfig   `mapstructure:"persistence"`
	Stats         StatsConfig         `mapstructure:"stats"`
	Ancillary     AncillaryConfig     `mapstructure:"ancillary"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DiffEngineConfig names the tokenizer/differ pair used by the diff stage
// (spec §6 "Config file": "a mapping containing diff_engine (name plus
// engine-specific sub-options) that names the tokenizer and differ"). The
// edit-script computation itself is not pluggable per engine -- spec §9's
// "Diff engine plug-ability" design note names only the tokenizer as the
// configuration surface -- so Name and Options select a tokendiff.Tokenizer;
// every engine shares the same go-diff-backed differ.
type DiffEngineConfig struct {
	Name    string         `mapstructure:"name"`
	Options map[string]any `mapstructure:"options"`
}

// PersistenceConfig configures the token-persistence engine's window and
// revert detector.
type PersistenceConfig struct {
	WindowSize   int `mapstructure:"window_size"`
	RevertRadius int `mapstructure:"revert_radius"`
}

// StatsConfig configures the revision-stats aggregator's censoring
// thresholds and token filters.
type StatsConfig struct {
	MinPersisted   int    `mapstructure:"min_persisted"`
	MinVisibleDays int    `mapstructure:"min_visible_days"`
	Include        string `mapstructure:"include"`
	Exclude        string `mapstructure:"exclude"`
}

// AncillaryConfig configures the single-purpose stream transforms.
type AncillaryConfig struct {
	MaxChars int `mapstructure:"max_chars"`
}

// ObservabilityConfig configures the ambient logging/metrics stack.
type ObservabilityConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`
}

// Validate checks every field with a documented non-negativity constraint
// and that DiffEngine names a resolvable tokenizer. Zero values are
// otherwise tolerated and resolved to package defaults by the consuming
// stage (persistence.Options, revstats.Options, ...), so a config file may
// omit a section entirely.
func (c *Config) Validate() error {
	if c.Persistence.WindowSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, c.Persistence.WindowSize)
	}

	if c.Persistence.RevertRadius < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRevertRadius, c.Persistence.RevertRadius)
	}

	if c.Stats.MinPersisted < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinPersisted, c.Stats.MinPersisted)
	}

	if c.Stats.MinVisibleDays < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinVisibleDays, c.Stats.MinVisibleDays)
	}

	if c.Ancillary.MaxChars < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxChars, c.Ancillary.MaxChars)
	}

	_, err := c.DiffEngine.resolve()

	return err
}

// MinVisibleSecs converts MinVisibleDays to seconds, or returns 0 when
// unset so the caller falls back to its own package default.
func (s StatsConfig) MinVisibleSecs() int64 {
	if s.MinVisibleDays <= 0 {
		return 0
	}

	return int64(s.MinVisibleDays) * 24 * 60 * 60
}

// Tokenizer resolves the configured diff engine into a tokendiff.Tokenizer.
func (c *Config) Tokenizer() (tokendiff.Tokenizer, error) {
	return c.DiffEngine.resolve()
}

// resolve maps a diff_engine.name to the Tokenizer it selects. "" and
// "whitespace" both mean tokendiff.DefaultTokenizer, treating an omitted
// config section as "use the default" rather than requiring every field to
// be spelled out.
func (d DiffEngineConfig) resolve() (tokendiff.Tokenizer, error) {
	switch d.Name {
	case "", "whitespace":
		return tokendiff.DefaultTokenizer, nil
	case "regexp":
		pattern, ok := d.Options["pattern"].(string)
		if !ok || pattern == "" {
			return nil, ErrMissingPattern
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("config: compiling diff_engine.options.pattern: %w", err)
		}

		return func(text string) []string {
			if text == "" {
				return nil
			}

			return re.FindAllString(text, -1)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDiffEngine, d.Name)
	}
}

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/config"
)

func TestLoadConfig_AppliesDefaultsWithNoFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWindowSize, cfg.Persistence.WindowSize)
	assert.Equal(t, config.DefaultRevertRadius, cfg.Persistence.RevertRadius)
	assert.Equal(t, config.DefaultMinPersisted, cfg.Stats.MinPersisted)
	assert.Equal(t, config.DefaultMinVisibleDays, cfg.Stats.MinVisibleDays)
	assert.Equal(t, config.DefaultMaxChars, cfg.Ancillary.MaxChars)
	assert.Equal(t, "whitespace", cfg.DiffEngine.Name)

	tok, err := cfg.Tokenizer()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", " ", "b"}, tok("a b"))
}

func TestLoadConfig_MissingFileAtExplicitPathIsAnError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig("/nonexistent/mwpersist.yaml")
	assert.Error(t, err)
}

func TestValidate_RejectsNegativeWindowSize(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Persistence: config.PersistenceConfig{WindowSize: -1}}
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidWindowSize)
}

func TestValidate_RejectsUnknownDiffEngine(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{DiffEngine: config.DiffEngineConfig{Name: "nonexistent"}}
	assert.ErrorIs(t, cfg.Validate(), config.ErrUnknownDiffEngine)
}

func TestDiffEngine_RegexpRequiresPattern(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{DiffEngine: config.DiffEngineConfig{Name: "regexp"}}
	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingPattern)
}

func TestDiffEngine_RegexpCompilesOptionsPattern(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{DiffEngine: config.DiffEngineConfig{
		Name:    "regexp",
		Options: map[string]any{"pattern": `\w+`},
	}}

	tok, err := cfg.Tokenizer()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tok("a b"))
}

func TestStatsConfig_MinVisibleSecsConvertsDaysWhenSet(t *testing.T) {
	t.Parallel()

	s := config.StatsConfig{MinVisibleDays: 1}
	assert.Equal(t, int64(86400), s.MinVisibleSecs())
}

func TestStatsConfig_MinVisibleSecsZeroWhenUnset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), config.StatsConfig{}.MinVisibleSecs())
}

package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/observability"
)

func TestPageHandler_InjectsPageAndRevisionFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(observability.NewPageHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := observability.WithRevision(observability.WithPage(context.Background(), "Foo"), 7)
	logger.InfoContext(ctx, "processed revision")

	var line map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Foo", line["page_title"])
	assert.InEpsilon(t, float64(7), line["revision_id"], 0)
}

func TestPageHandler_OmitsAttrsWhenContextBare(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(observability.NewPageHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(context.Background(), "no page context")

	var line map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, hasPage := line["page_title"]
	assert.False(t, hasPage)
}

func TestNewLogger_VerboseSelectsDebugLevel(t *testing.T) {
	t.Parallel()

	assert.True(t, observability.NewLogger(true).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, observability.NewLogger(false).Enabled(context.Background(), slog.LevelDebug))
}

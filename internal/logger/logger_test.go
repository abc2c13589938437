package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")

	log.Debug().Str("rack", "rack-1").Msg("placed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "rack-1", line["rack"])
	assert.Contains(t, line["caller"], "logger_test.go:")
}

func TestInitWriter_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "loud", "json")

	assert.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())
	assert.Contains(t, buf.String(), "invalid log level")

	buf.Reset()
	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	assert.Same(t, &l, Ctx(WithLogger(context.Background(), &l)))
	assert.Same(t, &log.Logger, Ctx(context.Background()))
}

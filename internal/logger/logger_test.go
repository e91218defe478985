package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONWithFile(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "app.log")

	closer, err := InitWithWriter(Config{Level: "debug", Format: "json", File: logFile}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Info().Str("file", "cv.pdf").Msg("hello")
	require.NoError(t, closer.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "cv.pdf", entry["file"])

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestInitInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	_, err := InitWithWriter(Config{Level: "verbose", Format: "json"}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	_, err := InitWithWriter(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "req-1")
	Ctx(ctx).Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	// 未携带 logger 的上下文回退到全局 logger
	buf.Reset()
	Ctx(context.Background()).Info().Msg("global")
	assert.Contains(t, buf.String(), "global")
}

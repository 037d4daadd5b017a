package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspace/memberd/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format with service attribute", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer

		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithService("billing"),
		)
		log.Info("checkout started", "user_id", "u1")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "checkout started", record["msg"])
		assert.Equal(t, "billing", record["service"])
		assert.Equal(t, "u1", record["user_id"])
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer

		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithLevel(slog.LevelWarn),
		)
		log.Info("ignored")
		log.Warn("kept")

		assert.NotContains(t, buf.String(), "ignored")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer

		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithTextFormat(),
		)
		log.Info("hello")

		assert.True(t, strings.Contains(buf.String(), "msg=hello"))
	})
}

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestLogger(t *testing.T) {
	t.Run("filter by level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger("info", nil, zapcore.AddSync(&buf))
		require.NoError(t, err)

		logger.Debug("debug record")
		logger.Info("info record", zap.String("node-id", "n1"))

		records := decodeRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "info record", records[0]["msg"])
		assert.Equal(t, "n1", records[0]["node-id"])
		assert.Equal(t, "main", records[0]["subsystem"])
	})

	t.Run("subsystem overrides level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger(
			"error", []string{"broadcast.tracker"}, zapcore.AddSync(&buf),
		)
		require.NoError(t, err)

		logger.WithSubsystem("broadcast").Debug("filtered")
		logger.WithSubsystem("broadcast.tracker").Debug("enabled")

		records := decodeRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "enabled", records[0]["msg"])
		assert.Equal(t, "broadcast.tracker", records[0]["subsystem"])
	})

	t.Run("fields inherited by subsystem", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger("debug", nil, zapcore.AddSync(&buf))
		require.NoError(t, err)

		logger.With(zap.String("node-id", "n1")).
			WithSubsystem("broadcast").
			Debug("record")

		records := decodeRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "n1", records[0]["node-id"])
		assert.Equal(t, "broadcast", records[0]["subsystem"])
		assert.Equal(t, "debug", records[0]["level"])
	})

	t.Run("unsupported level", func(t *testing.T) {
		_, err := NewLogger("trace", nil)
		assert.Error(t, err)
	})
}

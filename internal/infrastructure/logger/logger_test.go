package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigForEnvironment(t *testing.T) {
	tests := []struct {
		env    string
		format string
	}{
		{"", "console"},
		{"development", "console"},
		{"test", "console"},
		{"production", "json"},
		{"staging", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := ConfigForEnvironment(tt.env)
			assert.Equal(t, tt.format, cfg.Format)
			assert.Equal(t, "info", cfg.Level)
			assert.Equal(t, tt.env, cfg.Env)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses development defaults", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, log)
	})

	t.Run("level is honoured", func(t *testing.T) {
		log, err := New(&Config{Level: "warn", Format: "json", Output: "stderr"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("unwritable file output is an error", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open log output")
	})
}

func TestNew_FileOutputStampsServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange.log")
	log, err := New(&Config{Level: "debug", Format: "json", Output: path, Service: "shop-exchange", Env: "production"})
	require.NoError(t, err)

	log.Info("Import completed", zap.String("session_id", "s-1"))
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Import completed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "shop-exchange", entry["service"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "s-1", entry["session_id"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSync(t *testing.T) {
	assert.NoError(t, Sync(nil))
	assert.NoError(t, Sync(zap.NewNop()))
}

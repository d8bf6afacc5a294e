package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	require.NoError(t, InitializeFromEnv())
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellwatch.log")
	require.NoError(t, InitializeWithOptions(Options{Level: "info", File: path}))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Info("capture started", zap.String("session", "abc"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"abc"`)
}

func TestLogRawBytesOnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := SetLogger(zap.New(core))
	LogRawBytes("frame rejected", []byte{0x7e})
	assert.Zero(t, logs.Len())
	restore()

	core, logs = observer.New(zapcore.DebugLevel)
	defer SetLogger(zap.New(core))()
	LogRawBytes("frame rejected", []byte("AB\x00"), zap.Uint64("seq", 7))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "414200", fields["hex"])
	assert.Equal(t, "AB.", fields["ascii"])
	assert.Equal(t, uint64(7), fields["seq"])
}

func TestHexDumpTruncates(t *testing.T) {
	long := make([]byte, 300)
	assert.True(t, strings.HasSuffix(hexDump(long), "..."))
	assert.Len(t, asciiDump(long), 256)
	assert.Empty(t, hexDump(nil))
}

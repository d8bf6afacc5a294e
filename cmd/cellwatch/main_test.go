package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/diag"
)

func TestPcapPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"session.cwcap", "session.pcap"},
		{"/tmp/dump.bin", "/tmp/dump.pcap"},
		{"noext", "noext.pcap"},
		{filepath.Join("dir.d", "file"), filepath.Join("dir.d", "file") + ".pcap"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pcapPath(tt.in), tt.in)
	}
}

func TestOpenInputRawDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, os.WriteFile(path, diag.Encode([]byte{0x01, 0x02, 0x03}), 0o644))

	in, err := openInput(path)
	require.NoError(t, err)
	assert.IsType(t, diag.File{}, in.src)
	assert.True(t, strings.HasPrefix(in.sessionID, "raw-"))
	assert.Positive(t, in.size)
}

func TestOpenInputShortFileIsRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x7e}, 0o644))

	in, err := openInput(path)
	require.NoError(t, err)
	assert.IsType(t, diag.File{}, in.src)
}

func TestOpenInputCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s"+capture.Extension)
	meta := capture.Metadata{
		SessionID: "0123456789abcdef",
		Start:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Device:    "test-modem",
	}
	w, err := capture.Create(path, meta)
	require.NoError(t, err)
	require.NoError(t, w.Close(capture.EndNormal))

	in, err := openInput(path)
	require.NoError(t, err)
	assert.IsType(t, capture.File{}, in.src)
	assert.Equal(t, meta.SessionID, in.sessionID)
}

func TestOpenInputMissing(t *testing.T) {
	_, err := openInput(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/heuristic"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "cellwatch") {
		t.Errorf("GetConfigDir() = %v, should contain 'cellwatch'", configDir)
	}
	if filepath.Base(configDir) != appName {
		t.Errorf("GetConfigDir() = %v, want last element %q", configDir, appName)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Analysis.Analyzers != heuristic.DefaultConfig() {
		t.Error("Default() should enable every analyzer")
	}
	if cfg.Capture.PollInterval != capture.DefaultPollInterval {
		t.Errorf("Default().Capture.PollInterval = %v", cfg.Capture.PollInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Path != Default().Device.Path {
		t.Errorf("Load() of a missing file should return defaults, got device %q", cfg.Device.Path)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
device:
  path: tcp://127.0.0.1:43555
capture:
  dir: /srv/captures
  poll_interval: 50ms
analysis:
  analyzers:
    cell_anomaly: false
server:
  listen: 0.0.0.0:9000
  allowed_origins: [http://localhost:3000]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"device path", cfg.Device.Path, "tcp://127.0.0.1:43555"},
		{"device identity", cfg.DeviceIdentity(), "tcp://127.0.0.1:43555"},
		{"open timeout kept", cfg.Device.OpenTimeout, Default().Device.OpenTimeout},
		{"capture dir", cfg.Capture.Dir, "/srv/captures"},
		{"poll interval", cfg.Capture.PollInterval, 50 * time.Millisecond},
		{"queue size kept", cfg.Capture.QueueSize, capture.DefaultQueueSize},
		{"cell anomaly", cfg.Analysis.Analyzers.CellAnomaly, false},
		{"downgrade kept", cfg.Analysis.Analyzers.Downgrade, true},
		{"listen", cfg.Server.Listen, "0.0.0.0:9000"},
		{"origins", len(cfg.Server.AllowedOrigins), 1},
		{"log level", cfg.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	opts := cfg.ManagerOptions("v1.2.3")
	if opts.Session.Dir != "/srv/captures" || opts.Session.ToolVersion != "v1.2.3" {
		t.Errorf("ManagerOptions() = %+v", opts.Session)
	}
	if opts.Session.Analysis.Analyzers.CellAnomaly {
		t.Error("ManagerOptions() should carry the analyzer config")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "version: 1\nbogus: true\n", "bogus"},
		{"bad version", "version: 7\n", "unsupported config version"},
		{"bad level", "version: 1\nlogging:\n  level: loud\n", "logging.level"},
		{"negative queue", "version: 1\ncapture:\n  queue_size: -1\n", "capture.queue_size"},
		{"empty device", "version: 1\ndevice:\n  path: \"\"\n", "device.path"},
		{"not yaml", "version: [1\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Device.Path = ""
	cfg.Server.Listen = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"device.path", "server.listen"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Device.Identity = "pixel-test"
	cfg.Server.Advertise = true
	cfg.Analysis.Analyzers.NullCipher = false
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be gone after Save()")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Device.Identity != "pixel-test" || !loaded.Server.Advertise || loaded.Analysis.Analyzers.NullCipher {
		t.Errorf("Load() = %+v, want saved values", loaded)
	}
	if loaded.Capture.PollInterval != cfg.Capture.PollInterval {
		t.Errorf("PollInterval = %v, want %v", loaded.Capture.PollInterval, cfg.Capture.PollInterval)
	}
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/device"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/session"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version  int            `yaml:"version"`
	Device   DeviceConfig   `yaml:"device"`
	Capture  CaptureConfig  `yaml:"capture"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig locates the diagnostic device.
type DeviceConfig struct {
	Path        string        `yaml:"path"`                   // Character device, or tcp://host:port for a forwarded port
	Identity    string        `yaml:"identity,omitempty"`     // Stored in capture metadata; defaults to Path
	OpenTimeout time.Duration `yaml:"open_timeout,omitempty"` // How long to retry opening the device
}

// CaptureConfig controls live capture sessions.
type CaptureConfig struct {
	Dir          string        `yaml:"dir"`
	QueueSize    int           `yaml:"queue_size,omitempty"`
	MaxPending   int           `yaml:"max_pending,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// AnalysisConfig controls the analyzers.
type AnalysisConfig struct {
	HistorySize int              `yaml:"history_size,omitempty"`
	Analyzers   heuristic.Config `yaml:"analyzers"`
}

// ServerConfig controls the HTTP status surface.
type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	Advertise      bool     `yaml:"advertise"` // Announce the daemon over mDNS
	Instance       string   `yaml:"instance,omitempty"`
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Default returns the configuration used when no file exists. The capture
// directory lives next to the config file.
func Default() *Config {
	dir := "captures"
	if cfgDir, err := GetConfigDir(); err == nil {
		dir = filepath.Join(cfgDir, "captures")
	}
	return &Config{
		Version: CurrentVersion,
		Device: DeviceConfig{
			Path:        "/dev/diag",
			OpenTimeout: device.DefaultOpenTimeout,
		},
		Capture: CaptureConfig{
			Dir:          dir,
			QueueSize:    capture.DefaultQueueSize,
			MaxPending:   capture.DefaultMaxPending,
			PollInterval: capture.DefaultPollInterval,
		},
		Analysis: AnalysisConfig{
			HistorySize: session.DefaultHistorySize,
			Analyzers:   heuristic.DefaultConfig(),
		},
		Server: ServerConfig{
			Listen:    "127.0.0.1:8080",
			Advertise: false,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if strings.TrimSpace(c.Device.Path) == "" {
		errs = append(errs, errors.New("device.path must be set"))
	}
	if c.Device.OpenTimeout < 0 {
		errs = append(errs, errors.New("device.open_timeout must not be negative"))
	}
	if strings.TrimSpace(c.Capture.Dir) == "" {
		errs = append(errs, errors.New("capture.dir must be set"))
	}
	if c.Capture.QueueSize < 0 {
		errs = append(errs, errors.New("capture.queue_size must not be negative"))
	}
	if c.Capture.MaxPending < 0 {
		errs = append(errs, errors.New("capture.max_pending must not be negative"))
	}
	if c.Capture.PollInterval < 0 || c.Capture.PollInterval > time.Minute {
		errs = append(errs, fmt.Errorf("capture.poll_interval %s out of range (0 to 1m)", c.Capture.PollInterval))
	}
	if c.Analysis.HistorySize < 0 {
		errs = append(errs, errors.New("analysis.history_size must not be negative"))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must be set"))
	}
	if c.Logging.Level != "" {
		if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
			errs = append(errs, fmt.Errorf("logging.level: %w", err))
		}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, errors.New("logging rotation limits must not be negative"))
	}
	return errors.Join(errs...)
}

// DeviceIdentity is the name recorded in capture metadata.
func (c *Config) DeviceIdentity() string {
	if c.Device.Identity != "" {
		return c.Device.Identity
	}
	return c.Device.Path
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// ManagerOptions converts the device, capture and analysis sections into
// capture manager options.
func (c *Config) ManagerOptions(toolVersion string) capture.ManagerOptions {
	return capture.ManagerOptions{
		DevicePath: c.Device.Path,
		DeviceOpen: device.OpenOptions{Timeout: c.Device.OpenTimeout},
		Session: capture.Options{
			Device:       c.DeviceIdentity(),
			Dir:          c.Capture.Dir,
			ToolVersion:  toolVersion,
			QueueSize:    c.Capture.QueueSize,
			MaxPending:   c.Capture.MaxPending,
			PollInterval: c.Capture.PollInterval,
			Analysis:     c.AnalysisOptions(),
		},
	}
}

// AnalysisOptions converts the analysis section.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		Analyzers:   c.Analysis.Analyzers,
		HistorySize: c.Analysis.HistorySize,
	}
}

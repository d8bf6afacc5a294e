// Package config loads the cellwatch configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/cellwatch/config.yaml or $HOME/.config/cellwatch/config.yaml
//   - macOS: $HOME/.config/cellwatch/config.yaml
//   - Windows: %LOCALAPPDATA%\cellwatch\config.yaml
//
// A missing file is not an error; Load returns Default. Keys present in
// the file override the defaults, unknown keys are rejected.
//
//	device:
//	  path: /dev/diag
//	  open_timeout: 30s
//	capture:
//	  dir: /var/lib/cellwatch
//	  poll_interval: 200ms
//	analysis:
//	  analyzers:
//	    cell_anomaly: false
//	server:
//	  listen: 0.0.0.0:8080
//	  advertise: true
//	logging:
//	  level: info
//	  file: /var/log/cellwatch.log
//
// Command line flags override the loaded values.
package config

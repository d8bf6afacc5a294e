package discovery

import (
	"testing"
)

func TestDaemon_String(t *testing.T) {
	d := &Daemon{
		Instance: "cellwatch-pi",
		Hostname: "pi.local.",
		IP:       "192.168.4.16",
		Port:     8080,
	}

	expected := "cellwatch cellwatch-pi (pi.local.) at 192.168.4.16:8080"
	if d.String() != expected {
		t.Errorf("Daemon.String() = %v, want %v", d.String(), expected)
	}
}

func TestDaemon_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		daemon   *Daemon
		expected string
	}{
		{
			name:     "IPv4",
			daemon:   &Daemon{IP: "192.168.4.16", Port: 8080},
			expected: "http://192.168.4.16:8080",
		},
		{
			name:     "IPv6 is bracketed",
			daemon:   &Daemon{IP: "fe80::1", Port: 8080},
			expected: "http://[fe80::1]:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.daemon.BaseURL(); got != tt.expected {
				t.Errorf("Daemon.BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDaemon_GetMetadata(t *testing.T) {
	d := &Daemon{
		Metadata: map[string]string{
			"version": "v1.2.0",
			"device":  "/dev/diag",
		},
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"version", "v1.2.0"},
		{"device", "/dev/diag"},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := d.GetMetadata(tt.key); got != tt.expected {
			t.Errorf("Daemon.GetMetadata(%v) = %v, want %v", tt.key, got, tt.expected)
		}
	}

	var empty Daemon
	if got := empty.GetMetadata("anything"); got != "" {
		t.Errorf("Daemon.GetMetadata() with nil map = %v, want empty string", got)
	}
}

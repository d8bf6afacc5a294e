package discovery

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: ServiceDomain},
		HostName:      host,
		Port:          port,
		AddrIPv4:      v4,
		AddrIPv6:      v6,
		Text:          text,
	}
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 daemon",
			entry:    entry("cellwatch-pi", "pi.local.", 8080, []net.IP{net.ParseIP("192.168.4.16")}, nil, "version=v1"),
			wantIP:   "192.168.4.16",
			wantPort: 8080,
		},
		{
			name:     "IPv6 only daemon",
			entry:    entry("cellwatch-v6", "v6.local.", 8080, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 8080,
		},
		{
			name:     "both families prefer IPv4",
			entry:    entry("cellwatch-dual", "dual.local.", 9000, []net.IP{net.ParseIP("10.0.0.5")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
		},
		{
			name:    "no address",
			entry:   entry("cellwatch-x", "x.local.", 8080, nil, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   entry("cellwatch-x", "x.local.", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   entry("", "x.local.", 8080, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if d != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", d)
				}
				return
			}
			if d == nil {
				t.Fatal("parseServiceEntry() = nil, want daemon")
			}
			if d.IP != tt.wantIP {
				t.Errorf("daemon.IP = %v, want %v", d.IP, tt.wantIP)
			}
			if d.Port != tt.wantPort {
				t.Errorf("daemon.Port = %v, want %v", d.Port, tt.wantPort)
			}
			if d.Instance != tt.entry.Instance {
				t.Errorf("daemon.Instance = %v, want %v", d.Instance, tt.entry.Instance)
			}
			if time.Since(d.DiscoveredAt) > time.Second {
				t.Errorf("daemon.DiscoveredAt is not recent: %v", d.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	d := NewScanner().parseServiceEntry(entry("cellwatch-pi", "pi.local.", 8080,
		[]net.IP{net.ParseIP("192.168.4.16")}, nil,
		"version=v1.2.0", "device=/dev/diag", "flag", "api=/api"))
	if d == nil {
		t.Fatal("parseServiceEntry() = nil, want daemon")
	}

	expected := map[string]string{
		"version": "v1.2.0",
		"device":  "/dev/diag",
		"flag":    "", // Key without value
		"api":     "/api",
	}
	if len(d.Metadata) != len(expected) {
		t.Errorf("daemon.Metadata has %d entries, want %d", len(d.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := d.Metadata[key]; !ok {
			t.Errorf("daemon.Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("daemon.Metadata[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestAdvertiseRejectsBadPort(t *testing.T) {
	if _, err := Advertise("cellwatch-test", 0, nil); err == nil {
		t.Error("Advertise() with port 0 should fail")
	}
}

func TestDefaultInstance(t *testing.T) {
	got := DefaultInstance()
	if !strings.HasPrefix(got, "cellwatch") {
		t.Errorf("DefaultInstance() = %q, want cellwatch prefix", got)
	}
	if strings.Contains(got, ".") {
		t.Errorf("DefaultInstance() = %q should not contain a domain", got)
	}
}

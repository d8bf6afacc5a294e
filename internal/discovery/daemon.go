package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Daemon represents a cellwatch daemon discovered on the network
type Daemon struct {
	// Instance is the advertised service instance name (e.g., "cellwatch-pixel")
	Instance string

	// Hostname is the mDNS hostname (e.g., "raspberrypi.local.")
	Hostname string

	// IP is the address to reach the HTTP status surface, IPv4 preferred
	IP string

	// Port is the HTTP port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "version=v1.2.0", "device=/dev/diag", "api=/api"
	Metadata map[string]string

	// DiscoveredAt is when the daemon was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the daemon
func (d *Daemon) String() string {
	return fmt.Sprintf("cellwatch %s (%s) at %s", d.Instance, d.Hostname, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)))
}

// BaseURL returns the HTTP base URL for the daemon
func (d *Daemon) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Daemon) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

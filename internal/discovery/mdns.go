package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/logging"
)

const (
	// ServiceType is the mDNS service type cellwatch daemons advertise
	ServiceType = "_cellwatch._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for daemon discovery
	DefaultScanTimeout = 5 * time.Second
)

// Advertisement is a registered mDNS service. Shutdown withdraws it.
type Advertisement struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise announces a daemon listening on port. An empty instance uses
// "cellwatch-<hostname>".
func Advertise(instance string, port int, metadata map[string]string) (*Advertisement, error) {
	if port <= 0 {
		return nil, errors.New("advertise: port must be positive")
	}
	if instance == "" {
		instance = DefaultInstance()
	}

	text := make([]string, 0, len(metadata))
	for k, v := range metadata {
		text = append(text, k+"="+v)
	}
	slices.Sort(text)

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Advertising over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement. It is safe to call more than once.
func (a *Advertisement) Shutdown() {
	a.once.Do(a.server.Shutdown)
}

// DefaultInstance is the instance name used when none is configured.
func DefaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "cellwatch"
	}
	return "cellwatch-" + strings.SplitN(host, ".", 2)[0]
}

// Scanner handles mDNS daemon discovery
type Scanner struct {
	// Timeout is the maximum time to wait for daemon discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers cellwatch daemons until the timeout or ctx expires.
func (s *Scanner) Scan(ctx context.Context) ([]*Daemon, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var (
		mu      sync.Mutex
		daemons = make([]*Daemon, 0)
		seen    = make(map[string]bool)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			d := s.parseServiceEntry(entry)
			if d == nil {
				continue
			}
			mu.Lock()
			if !seen[d.Instance] {
				seen[d.Instance] = true
				daemons = append(daemons, d)
				logging.Debug("Discovered daemon", zap.String("daemon", d.String()))
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	out := slices.Clone(daemons)
	slices.SortFunc(out, func(a, b *Daemon) int { return strings.Compare(a.Instance, b.Instance) })
	return out, nil
}

// parseServiceEntry converts a zeroconf service entry to a Daemon
// Returns nil if the entry has no usable address
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Daemon {
	if entry == nil || entry.Instance == "" || entry.Port <= 0 {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Daemon{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a scan with a 3-second timeout
func QuickScan(ctx context.Context) ([]*Daemon, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.Scan(ctx)
}

package adapter

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
)

// MaxSweepAddresses bounds the size of a swept range
const MaxSweepAddresses = 1024

// ScannerConfig holds configuration for the TCP sweep
type ScannerConfig struct {
	// DiscoveryPorts are probed to find live hosts
	DiscoveryPorts []int
	// Timeout for individual connection attempts
	Timeout time.Duration
	// MaxConcurrent limits parallel host probes
	MaxConcurrent int
}

// DefaultScannerConfig returns the defaults used for homelab-sized ranges
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		DiscoveryPorts: []int{22, 80, 443, 445, 3389, 5900, 8080},
		Timeout:        1 * time.Second,
		MaxConcurrent:  64,
	}
}

// ScannerAdapter finds live hosts with TCP connect probes. It needs no
// privileges and no external binary.
type ScannerAdapter struct {
	config ScannerConfig
}

// NewScannerAdapter creates a new TCP sweep adapter
func NewScannerAdapter(config ScannerConfig) *ScannerAdapter {
	def := DefaultScannerConfig()
	if len(config.DiscoveryPorts) == 0 {
		config.DiscoveryPorts = def.DiscoveryPorts
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	return &ScannerAdapter{config: config}
}

// Name returns the adapter identifier
func (s *ScannerAdapter) Name() string {
	return "scanner"
}

// Priority returns the adapter priority
func (s *ScannerAdapter) Priority() int {
	return 50
}

// Available is always true: the sweep only needs TCP sockets
func (s *ScannerAdapter) Available(ctx context.Context) bool {
	return true
}

// Discover sweeps req.Target, a CIDR range or a single address, and reports
// each live host as soon as its ports are known
func (s *ScannerAdapter) Discover(ctx context.Context, req discovery.Request, out discovery.Reporter) error {
	ips, err := expandCIDR(req.Target)
	if err != nil {
		return &domain.ValidationError{Field: "target", Reason: err.Error()}
	}
	mask := targetMask(req.Target)

	timeout := s.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var scanPorts []int
	if req.ScanPorts {
		scanPorts = req.Ports
		if len(scanPorts) == 0 {
			scanPorts = discovery.DefaultScanPorts
		}
	}

	log.Printf("Scanner: sweeping %s (%d addresses, ports=%v, concurrency=%d)",
		req.Target, len(ips), s.config.DiscoveryPorts, s.config.MaxConcurrent)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for _, ip := range ips {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			host, alive := s.probeHost(gctx, ip, scanPorts, timeout)
			if alive {
				host.Mask = mask
				log.Printf("Scanner: host alive %s (%s)", ip, describePorts(host.Ports))
				out.Found(host)
			}

			mu.Lock()
			done++
			out.Progress(done, len(ips))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// probeHost checks the discovery ports, then the scan ports of a live host
func (s *ScannerAdapter) probeHost(ctx context.Context, ip string, scanPorts []int, timeout time.Duration) (domain.DiscoveredHost, bool) {
	host := domain.DiscoveredHost{IP: ip, Status: string(domain.StatusOnline)}

	alive := false
	open := make(map[int]bool)
	for _, port := range s.config.DiscoveryPorts {
		if ctx.Err() != nil {
			return host, false
		}
		if probePort(ctx, ip, port, timeout) {
			alive = true
			open[port] = true
			break
		}
	}
	if !alive {
		return host, false
	}

	for _, port := range scanPorts {
		if ctx.Err() != nil {
			break
		}
		if open[port] || probePort(ctx, ip, port, timeout) {
			open[port] = true
		}
	}
	for port := range open {
		if len(scanPorts) == 0 || slices.Contains(scanPorts, port) {
			host.Ports = append(host.Ports, port)
		}
	}
	sort.Ints(host.Ports)

	if name := reverseDNS(ctx, ip); name != "" {
		host.Name = shortHostname(name)
	}
	return host, true
}

// probePort attempts to connect to a TCP port
func probePort(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(ip, fmt.Sprint(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// reverseDNS performs a reverse DNS lookup
func reverseDNS(ctx context.Context, ip string) string {
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// shortHostname strips the domain from an FQDN when the short form is still
// meaningful
func shortHostname(name string) string {
	if idx := strings.Index(name, "."); idx > 2 {
		return name[:idx]
	}
	return name
}

// expandCIDR converts a CIDR range or a single IPv4 address to a list of
// host addresses. Network and broadcast addresses are skipped for /30 and
// larger ranges.
func expandCIDR(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if !strings.Contains(target, "/") {
		addr, err := netip.ParseAddr(target)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid target %q", target)
		}
		return []string{addr.String()}, nil
	}

	prefix, err := netip.ParsePrefix(target)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", target, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("only IPv4 supported")
	}
	prefix = prefix.Masked()

	hostBits := 32 - prefix.Bits()
	size := uint64(1) << hostBits
	skipEdges := prefix.Bits() <= 30
	count := size
	if skipEdges {
		count -= 2
	}
	if count > MaxSweepAddresses {
		return nil, fmt.Errorf("CIDR range too large (max %d addresses)", MaxSweepAddresses)
	}

	ips := make([]string, 0, count)
	addr := prefix.Addr()
	for i := uint64(0); i < size; i++ {
		if !(skipEdges && (i == 0 || i == size-1)) {
			ips = append(ips, addr.String())
		}
		addr = addr.Next()
	}
	return ips, nil
}

// targetMask returns the dotted netmask of a CIDR target, or the default
// mask for a single address
func targetMask(target string) string {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(target))
	if err != nil {
		return domain.DefaultMask
	}
	mask, err := domain.MaskFromPrefix(prefix.Bits())
	if err != nil {
		return domain.DefaultMask
	}
	return mask
}

package adapter

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
)

// NmapAdapter discovers hosts and their open ports with the nmap binary
type NmapAdapter struct {
	timeout           time.Duration
	portRange         string
	serviceDetection  bool
	skipHostDiscovery bool
}

// NewNmapAdapter creates a new nmap-based discovery adapter
func NewNmapAdapter(opts ...NmapOption) *NmapAdapter {
	adapter := &NmapAdapter{
		timeout:          10 * time.Minute,
		portRange:        joinPorts(discovery.DefaultScanPorts),
		serviceDetection: false,
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// Name returns the adapter identifier
func (n *NmapAdapter) Name() string {
	return "nmap"
}

// Priority returns the adapter priority
func (n *NmapAdapter) Priority() int {
	return 80 // preferred over the TCP sweep when installed
}

// Available checks that the nmap binary can run
func (n *NmapAdapter) Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}

	_, _, err = scanner.Run()
	return err == nil
}

// Discover runs one nmap scan of req.Target and reports every host that
// is up
func (n *NmapAdapter) Discover(ctx context.Context, req discovery.Request, out discovery.Reporter) error {
	timeout := n.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ports := n.portRange
	if req.ScanPorts && len(req.Ports) > 0 {
		ports = joinPorts(req.Ports)
	}

	opts := []nmap.Option{
		nmap.WithTargets(req.Target),
		nmap.WithPorts(ports),
	}
	if n.serviceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}

	scanner, err := nmap.NewScanner(scanCtx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	log.Printf("Nmap: scanning target %s (ports=%s)", req.Target, ports)
	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("Nmap: warnings for %s: %v", req.Target, *warnings)
	}

	hosts, err := n.processResults(result, targetMask(req.Target))
	if err != nil {
		return err
	}
	for i, h := range hosts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out.Found(h)
		out.Progress(i+1, len(hosts))
	}

	log.Printf("Nmap: scan of %s complete, %d hosts up", req.Target, len(hosts))
	return nil
}

// processResults converts nmap scan results to discovered hosts
func (n *NmapAdapter) processResults(result *nmap.Run, mask string) ([]domain.DiscoveredHost, error) {
	if result == nil {
		return nil, fmt.Errorf("nil scan result")
	}

	var hosts []domain.DiscoveredHost
	for _, host := range result.Hosts {
		if len(host.Addresses) == 0 || host.Status.State != "up" {
			continue
		}

		h := domain.DiscoveredHost{
			Status: string(domain.StatusOnline),
			Mask:   mask,
			Ports:  openPorts(host.Ports),
		}
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				if h.IP == "" {
					h.IP = addr.Addr
				}
			case "mac":
				h.MAC = strings.ToUpper(addr.Addr)
			}
		}
		if h.IP == "" {
			continue
		}
		if len(host.Hostnames) > 0 {
			h.Name = shortHostname(host.Hostnames[0].Name)
		}

		log.Printf("Nmap: host %s up (%s)", h.IP, describePorts(h.Ports))
		hosts = append(hosts, h)
	}

	return hosts, nil
}

// openPorts extracts the open port numbers
func openPorts(ports []nmap.Port) []int {
	var open []int
	for _, port := range ports {
		if port.State.State == "open" {
			open = append(open, int(port.ID))
		}
	}
	return open
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// parsePorts validates a port list in nmap format
// Supported: "80,443,8080" or "1-1000" or "22,80-443,8080"
func parsePorts(portRange string) (string, error) {
	parts := strings.Split(portRange, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return "", fmt.Errorf("invalid port range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil || end < 1 || end > 65535 || end < start {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[1])
			}
		} else {
			port, err := strconv.Atoi(part)
			if err != nil || port < 1 || port > 65535 {
				return "", fmt.Errorf("invalid port number: %s", part)
			}
		}
	}
	return portRange, nil
}

package adapter

import "time"

// NmapOption is a functional option for configuring NmapAdapter
type NmapOption func(*NmapAdapter)

// WithTimeout sets the timeout for the entire nmap scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapAdapter) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithPortRange sets the ports to scan
// Format: "80,443,8080" or "1-1000" or "22,80-443,8080"
func WithPortRange(ports string) NmapOption {
	return func(n *NmapAdapter) {
		if validated, err := parsePorts(ports); err == nil {
			n.portRange = validated
		}
	}
}

// WithServiceDetection enables or disables service version detection (-sV)
func WithServiceDetection(enabled bool) NmapOption {
	return func(n *NmapAdapter) {
		n.serviceDetection = enabled
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapAdapter) {
		n.skipHostDiscovery = skip
	}
}

// WithFastScan scans only ssh and web ports without service detection
func WithFastScan() NmapOption {
	return func(n *NmapAdapter) {
		n.portRange = "22,80,443"
		n.serviceDetection = false
		n.timeout = 5 * time.Minute
	}
}

// Package adapter implements the network discovery producers.
//
// Adapters probe a target range and report every live host to a
// discovery.Reporter. The registry picks the adapter for a request: the
// named one, or the highest-priority adapter that is enabled and available
// on this machine.
//
// # Core Adapters
//
// ScannerAdapter sweeps a CIDR range with TCP connect probes, bounded by an
// errgroup worker limit. It needs neither root nor external binaries.
//
// NmapAdapter wraps the nmap binary and is preferred when installed.
//
// # Enrichers
//
// Enrichers run on each host between the adapter and the merge queue.
// SSHHostnameProbe logs into hosts with SSH open and names them after their
// own hostname.
package adapter

package adapter

import (
	"fmt"
	"sort"
	"strings"
)

// Common service ports with their typical service names
var wellKnownPorts = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	445:  "smb",
	993:  "imaps",
	995:  "pop3s",
	3306: "mysql",
	3389: "rdp",
	5432: "postgres",
	5900: "vnc",
	6443: "k8s-api",
	8080: "http-alt",
	8443: "https-alt",
	9090: "prometheus",
	9100: "node-exporter",
}

// ServiceName returns the usual service on port
func ServiceName(port int) string {
	if name, ok := wellKnownPorts[port]; ok {
		return name
	}
	return fmt.Sprintf("unknown-%d", port)
}

// describePorts renders open ports for log lines, e.g. "22/ssh, 80/http"
func describePorts(ports []int) string {
	if len(ports) == 0 {
		return "no open ports"
	}
	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = fmt.Sprintf("%d/%s", p, ServiceName(p))
	}
	return strings.Join(parts, ", ")
}

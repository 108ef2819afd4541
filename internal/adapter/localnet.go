package adapter

import (
	"net"
	"net/netip"
	"strings"
)

// virtualPrefixes name container and bridge interfaces that are not worth
// sweeping
var virtualPrefixes = []string{"veth", "docker", "br-", "cni", "flannel", "virbr"}

// LocalTargets returns a sweepable range for every private IPv4 network the
// host sits on, in interface order. Loopback, down and virtual interfaces
// are skipped.
func LocalTargets() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var targets []string
	seen := make(map[string]bool)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || isVirtual(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			target, ok := sweepTarget(ipnet.IP, ones)
			if ok && !seen[target] {
				seen[target] = true
				targets = append(targets, target)
			}
		}
	}
	return targets
}

// sweepTarget narrows the network of ip to a range the scanner accepts.
// Networks larger than a /24 are cut to the /24 around ip.
func sweepTarget(ip net.IP, bits int) (string, bool) {
	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok || !addr.IsPrivate() {
		return "", false
	}
	if bits < 24 {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", false
	}
	return prefix.String(), true
}

func isVirtual(name string) bool {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

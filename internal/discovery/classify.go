package discovery

import (
	"slices"

	"netlayers/internal/domain"
)

// DefaultScanPorts are probed when a request asks for port scanning without
// naming ports
var DefaultScanPorts = []int{80, 443, 22, 21, 23, 25, 53, 110, 143, 993, 995}

// portRules map open ports to a device type. The first matching rule wins.
var portRules = []struct {
	ports []int
	typ   domain.DeviceType
}{
	{[]int{80, 443}, domain.DeviceServer},
	{[]int{22}, domain.DeviceRouter},
	{[]int{23}, domain.DeviceSwitch},
	{[]int{21}, domain.DeviceFTPServer},
	{[]int{25, 110, 143}, domain.DeviceMailServer},
	{[]int{53}, domain.DeviceDNSServer},
}

// InferDeviceType guesses a device type from open ports
func InferDeviceType(ports []int) domain.DeviceType {
	for _, rule := range portRules {
		for _, p := range rule.ports {
			if slices.Contains(ports, p) {
				return rule.typ
			}
		}
	}
	return domain.DeviceHost
}

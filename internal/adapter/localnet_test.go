package adapter

import (
	"net"
	"testing"
)

func TestSweepTarget(t *testing.T) {
	tests := []struct {
		ip   string
		bits int
		want string
		ok   bool
	}{
		{"192.168.1.37", 24, "192.168.1.0/24", true},
		{"10.20.30.40", 16, "10.20.30.0/24", true},
		{"172.16.5.9", 28, "172.16.5.0/28", true},
		{"8.8.8.8", 24, "", false},
		{"fd00::1", 64, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got, ok := sweepTarget(net.ParseIP(tt.ip), tt.bits)
			if ok != tt.ok || got != tt.want {
				t.Errorf("sweepTarget(%s/%d) = %q, %v; want %q, %v", tt.ip, tt.bits, got, ok, tt.want, tt.ok)
			}
			if ok {
				if _, err := expandCIDR(got); err != nil {
					t.Errorf("target %s is not sweepable: %v", got, err)
				}
			}
		})
	}
}

func TestIsVirtual(t *testing.T) {
	for name, want := range map[string]bool{
		"eth0":       false,
		"wlp2s0":     false,
		"docker0":    true,
		"veth12ab":   true,
		"br-4f1c2a3": true,
	} {
		if got := isVirtual(name); got != want {
			t.Errorf("isVirtual(%q) = %v, want %v", name, got, want)
		}
	}
}

package adapter

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
)

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantFirst string
		wantLast  string
		wantError bool
	}{
		{"single IP", "192.168.1.1", 1, "192.168.1.1", "192.168.1.1", false},
		{"slash 24", "192.168.1.0/24", 254, "192.168.1.1", "192.168.1.254", false},
		{"unmasked address", "10.0.0.77/30", 2, "10.0.0.77", "10.0.0.78", false},
		{"slash 31 keeps both", "10.0.0.0/31", 2, "10.0.0.0", "10.0.0.1", false},
		{"slash 32", "10.0.0.9/32", 1, "10.0.0.9", "10.0.0.9", false},
		{"slash 22 at limit", "10.0.0.0/22", 1022, "10.0.0.1", "10.0.3.254", false},
		{"too large", "10.0.0.0/16", 0, "", "", true},
		{"invalid CIDR", "192.168.1.0/99", 0, "", "", true},
		{"ipv6", "fe80::/120", 0, "", "", true},
		{"garbage", "router", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ips, err := expandCIDR(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("expandCIDR(%s) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if len(ips) != tt.wantCount {
				t.Fatalf("expected %d addresses, got %d", tt.wantCount, len(ips))
			}
			if ips[0] != tt.wantFirst || ips[len(ips)-1] != tt.wantLast {
				t.Errorf("range %s..%s, want %s..%s", ips[0], ips[len(ips)-1], tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestTargetMask(t *testing.T) {
	tests := map[string]string{
		"10.0.0.0/8":     "255.0.0.0",
		"192.168.1.0/26": "255.255.255.192",
		"192.168.1.5":    domain.DefaultMask,
	}
	for in, want := range tests {
		if got := targetMask(in); got != want {
			t.Errorf("targetMask(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestDescribePorts(t *testing.T) {
	if got := describePorts([]int{80, 22, 7777}); got != "22/ssh, 80/http, 7777/unknown-7777" {
		t.Errorf("describePorts() = %q", got)
	}
	if got := describePorts(nil); got != "no open ports" {
		t.Errorf("describePorts(nil) = %q", got)
	}
}

type collectingReporter struct {
	mu    sync.Mutex
	hosts []domain.DiscoveredHost
	done  int
	total int
}

func (r *collectingReporter) Found(h domain.DiscoveredHost) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts = append(r.hosts, h)
}

func (r *collectingReporter) Progress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done, r.total = done, total
}

func listenLoopback(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listener unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestScannerAdapter_Discover(t *testing.T) {
	port := listenLoopback(t)
	scanner := NewScannerAdapter(ScannerConfig{
		DiscoveryPorts: []int{port},
		Timeout:        500 * time.Millisecond,
	})

	t.Run("live host", func(t *testing.T) {
		rep := &collectingReporter{}
		req := discovery.Request{Target: "127.0.0.1", ScanPorts: true, Ports: []int{port}}
		if err := scanner.Discover(context.Background(), req, rep); err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if len(rep.hosts) != 1 {
			t.Fatalf("expected 1 host, got %d", len(rep.hosts))
		}
		h := rep.hosts[0]
		if h.IP != "127.0.0.1" || h.Mask != domain.DefaultMask || h.Status != "online" {
			t.Errorf("unexpected host %+v", h)
		}
		if len(h.Ports) != 1 || h.Ports[0] != port {
			t.Errorf("expected ports [%d], got %v", port, h.Ports)
		}
		if rep.done != 1 || rep.total != 1 {
			t.Errorf("expected progress 1/1, got %d/%d", rep.done, rep.total)
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		err := scanner.Discover(context.Background(), discovery.Request{Target: "nowhere"}, &collectingReporter{})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rep := &collectingReporter{}
		if err := scanner.Discover(ctx, discovery.Request{Target: "127.0.0.0/30"}, rep); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(rep.hosts) != 0 {
			t.Errorf("expected no hosts after cancel, got %d", len(rep.hosts))
		}
	})
}

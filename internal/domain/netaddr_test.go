package domain

import "testing"

func TestPrefixLength(t *testing.T) {
	tests := []struct {
		mask    string
		want    int
		wantErr bool
	}{
		{"255.255.255.0", 24, false},
		{"255.255.0.0", 16, false},
		{"255.255.255.255", 32, false},
		{"0.0.0.0", 0, false},
		{"255.0.255.0", 0, true},
		{"not-a-mask", 0, true},
	}
	for _, tt := range tests {
		got, err := PrefixLength(tt.mask)
		if (err != nil) != tt.wantErr {
			t.Errorf("PrefixLength(%q) error = %v, wantErr %v", tt.mask, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PrefixLength(%q) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestMaskFromPrefix(t *testing.T) {
	for prefix, want := range map[int]string{24: "255.255.255.0", 0: "0.0.0.0", 32: "255.255.255.255", 20: "255.255.240.0"} {
		got, err := MaskFromPrefix(prefix)
		if err != nil {
			t.Fatalf("MaskFromPrefix(%d): %v", prefix, err)
		}
		if got != want {
			t.Errorf("MaskFromPrefix(%d) = %s, want %s", prefix, got, want)
		}
	}
	if _, err := MaskFromPrefix(33); err == nil {
		t.Error("expected error for prefix 33")
	}
}

func TestSubnetMath(t *testing.T) {
	network, err := NetworkAddress("192.168.1.77", "255.255.255.0")
	if err != nil || network != "192.168.1.0" {
		t.Errorf("NetworkAddress = %s, %v", network, err)
	}

	broadcast, err := BroadcastAddress("192.168.1.77", "255.255.255.0")
	if err != nil || broadcast != "192.168.1.255" {
		t.Errorf("BroadcastAddress = %s, %v", broadcast, err)
	}

	first, last, err := HostRange("10.0.0.9", "255.255.255.248")
	if err != nil || first != "10.0.0.9" || last != "10.0.0.14" {
		t.Errorf("HostRange = %s-%s, %v", first, last, err)
	}

	first, last, err = HostRange("10.0.0.9", "255.255.255.255")
	if err != nil || first != "10.0.0.9" || last != "10.0.0.9" {
		t.Errorf("HostRange /32 = %s-%s, %v", first, last, err)
	}

	cidr, err := FormatCIDR("10.1.2.3", "255.255.0.0")
	if err != nil || cidr != "10.1.2.3/16" {
		t.Errorf("FormatCIDR = %s, %v", cidr, err)
	}

	if !InSubnet("10.1.2.3", "10.1.0.0/16") || InSubnet("10.2.0.1", "10.1.0.0/16") {
		t.Error("InSubnet wrong")
	}

	if !SubnetsOverlap("10.0.0.1", "255.255.0.0", "10.0.5.1", "255.255.255.0") {
		t.Error("expected overlap between /16 and contained /24")
	}
	if SubnetsOverlap("10.0.0.1", "255.255.255.0", "10.0.1.1", "255.255.255.0") {
		t.Error("expected no overlap between adjacent /24s")
	}
}

func TestCommonSubnet(t *testing.T) {
	tests := []struct {
		ips  []string
		want string
	}{
		{[]string{"192.168.1.10", "192.168.1.20"}, "192.168.1.0/27"},
		{[]string{"10.0.0.1"}, "10.0.0.1/32"},
		{[]string{"10.0.0.1", "11.0.0.1"}, "10.0.0.0/7"},
		{nil, ""},
		{[]string{"10.0.0.1", "junk"}, ""},
	}
	for _, tt := range tests {
		if got := CommonSubnet(tt.ips); got != tt.want {
			t.Errorf("CommonSubnet(%v) = %q, want %q", tt.ips, got, tt.want)
		}
	}
}

func TestAddressType(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1":   AddressLoopback,
		"224.0.0.5":   AddressMulticast,
		"192.168.0.1": AddressPrivate,
		"8.8.8.8":     AddressPublic,
		"300.1.1.1":   AddressInvalid,
	}
	for ip, want := range tests {
		if got := AddressType(ip); got != want {
			t.Errorf("AddressType(%s) = %s, want %s", ip, got, want)
		}
	}
	if !IsPrivate("10.1.1.1") || IsLoopback("10.1.1.1") || IsMulticast("10.1.1.1") {
		t.Error("predicate helpers disagree with AddressType")
	}
}

func TestFindAddressConflicts(t *testing.T) {
	a, b, c := NewNode(1), NewNode(2), NewNode(3)
	b.L3.IP = a.L3.IP
	c.L3.IP = ""

	conflicts := FindAddressConflicts([]*Node{a, b, c})
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].NodeA != 1 || conflicts[0].NodeB != 2 {
		t.Errorf("unexpected conflict %+v", conflicts[0])
	}
}

func TestDiscoveredHostDefaultName(t *testing.T) {
	if got := (DiscoveredHost{IP: "10.0.0.5"}).DefaultName(); got != "Host-5" {
		t.Errorf("expected Host-5, got %s", got)
	}
	if got := (DiscoveredHost{IP: "10.0.0.5", Name: "nas"}).DefaultName(); got != "nas" {
		t.Errorf("expected nas, got %s", got)
	}
}

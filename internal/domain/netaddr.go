package domain

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"strings"
)

// Address kinds returned by AddressType
const (
	AddressInvalid   = "invalid"
	AddressLoopback  = "loopback"
	AddressMulticast = "multicast"
	AddressPrivate   = "private"
	AddressPublic    = "public"
)

// ValidateIP reports whether s is a dotted IPv4 address
func ValidateIP(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	return err == nil && addr.Is4()
}

// ValidateSubnet reports whether s is an IPv4 CIDR such as 10.0.0.0/8
func ValidateSubnet(s string) bool {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	return err == nil && p.Addr().Is4()
}

// ValidateMask reports whether s is a contiguous dotted netmask
func ValidateMask(s string) bool {
	_, err := PrefixLength(s)
	return err == nil
}

// PrefixLength converts a dotted netmask to its prefix length
func PrefixLength(mask string) (int, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(mask))
	if err != nil || !addr.Is4() {
		return 0, &ValidationError{Field: "mask", Reason: fmt.Sprintf("invalid mask %q", mask)}
	}
	b := addr.As4()
	m := binary.BigEndian.Uint32(b[:])
	ones := bits.OnesCount32(m)
	// A contiguous mask has all its ones at the top.
	if m != ^uint32(0)<<(32-ones) {
		return 0, &ValidationError{Field: "mask", Reason: fmt.Sprintf("non-contiguous mask %q", mask)}
	}
	return ones, nil
}

// MaskFromPrefix converts a prefix length to a dotted netmask
func MaskFromPrefix(prefix int) (string, error) {
	if prefix < 0 || prefix > 32 {
		return "", &ValidationError{Field: "prefix", Reason: fmt.Sprintf("prefix %d out of range", prefix)}
	}
	var m uint32
	if prefix > 0 {
		m = ^uint32(0) << (32 - prefix)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], m)
	return netip.AddrFrom4(b).String(), nil
}

func prefixOf(ip, mask string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !addr.Is4() {
		return netip.Prefix{}, &ValidationError{Field: "ip", Reason: fmt.Sprintf("invalid address %q", ip)}
	}
	n, err := PrefixLength(mask)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, n).Masked(), nil
}

// FormatCIDR renders ip and mask as "ip/prefix"
func FormatCIDR(ip, mask string) (string, error) {
	n, err := PrefixLength(mask)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d", ip, n), nil
}

// InSubnet reports whether ip lies inside the CIDR subnet
func InSubnet(ip, subnet string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	p, err := netip.ParsePrefix(strings.TrimSpace(subnet))
	if err != nil {
		return false
	}
	return p.Masked().Contains(addr)
}

// NetworkAddress returns the network address of ip/mask
func NetworkAddress(ip, mask string) (string, error) {
	p, err := prefixOf(ip, mask)
	if err != nil {
		return "", err
	}
	return p.Addr().String(), nil
}

// BroadcastAddress returns the broadcast address of ip/mask
func BroadcastAddress(ip, mask string) (string, error) {
	p, err := prefixOf(ip, mask)
	if err != nil {
		return "", err
	}
	return lastAddr(p).String(), nil
}

// HostRange returns the first and last usable host of ip/mask. Networks with
// no usable hosts (/31, /32) return the network and broadcast addresses.
func HostRange(ip, mask string) (first, last string, err error) {
	p, err := prefixOf(ip, mask)
	if err != nil {
		return "", "", err
	}
	network, broadcast := p.Addr(), lastAddr(p)
	if p.Bits() >= 31 {
		return network.String(), broadcast.String(), nil
	}
	return network.Next().String(), broadcast.Prev().String(), nil
}

// SubnetsOverlap reports whether ip1/mask1 and ip2/mask2 share any address
func SubnetsOverlap(ip1, mask1, ip2, mask2 string) bool {
	p1, err := prefixOf(ip1, mask1)
	if err != nil {
		return false
	}
	p2, err := prefixOf(ip2, mask2)
	if err != nil {
		return false
	}
	return p1.Overlaps(p2)
}

// CommonSubnet returns the smallest CIDR containing every address, or ""
// when the list is empty or holds an invalid address
func CommonSubnet(ips []string) string {
	if len(ips) == 0 {
		return ""
	}
	var base uint32
	prefix := 32
	for i, ip := range ips {
		addr, err := netip.ParseAddr(strings.TrimSpace(ip))
		if err != nil || !addr.Is4() {
			return ""
		}
		b := addr.As4()
		v := binary.BigEndian.Uint32(b[:])
		if i == 0 {
			base = v
			continue
		}
		if common := bits.LeadingZeros32(base ^ v); common < prefix {
			prefix = common
		}
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], base)
	return netip.PrefixFrom(netip.AddrFrom4(b), prefix).Masked().String()
}

// AddressType classifies an address as loopback, multicast, private or public
func AddressType(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return AddressInvalid
	}
	switch {
	case addr.IsLoopback():
		return AddressLoopback
	case addr.IsMulticast():
		return AddressMulticast
	case addr.IsPrivate():
		return AddressPrivate
	default:
		return AddressPublic
	}
}

// IsPrivate reports whether ip is in an RFC 1918 range
func IsPrivate(ip string) bool { return AddressType(ip) == AddressPrivate }

// IsLoopback reports whether ip is a loopback address
func IsLoopback(ip string) bool { return AddressType(ip) == AddressLoopback }

// IsMulticast reports whether ip is a multicast address
func IsMulticast(ip string) bool { return AddressType(ip) == AddressMulticast }

// LastOctet returns the final dotted component of an address
func LastOctet(ip string) string {
	if i := strings.LastIndex(ip, "."); i >= 0 {
		return ip[i+1:]
	}
	return ip
}

// AddressConflict describes two nodes whose L3 settings collide
type AddressConflict struct {
	NodeA  int    `json:"node_a"`
	NodeB  int    `json:"node_b"`
	Reason string `json:"reason"`
}

// FindAddressConflicts returns every pair of nodes sharing an IP address
func FindAddressConflicts(nodes []*Node) []AddressConflict {
	seen := make(map[string]int)
	var out []AddressConflict
	for _, n := range nodes {
		ip := strings.TrimSpace(n.L3.IP)
		if ip == "" {
			continue
		}
		if first, ok := seen[ip]; ok {
			out = append(out, AddressConflict{
				NodeA:  first,
				NodeB:  n.ID,
				Reason: fmt.Sprintf("duplicate address %s", ip),
			})
			continue
		}
		seen[ip] = n.ID
	}
	return out
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().As4()
	v := binary.BigEndian.Uint32(b[:])
	if p.Bits() < 32 {
		v |= ^uint32(0) >> p.Bits()
	}
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], v)
	return netip.AddrFrom4(out)
}

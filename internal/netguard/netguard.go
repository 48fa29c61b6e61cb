// Package netguard recognizes private and reserved address ranges. Crawler
// identities are never verified for such addresses: no public crawler fleet
// lives there, and resolving them only leaks internal DNS.
package netguard

import "net"

// BlockedCIDRs are ranges that never host a public crawler.
var BlockedCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"100.64.0.0/10",  // carrier-grade NAT
		"169.254.0.0/16", // link-local
		"0.0.0.0/8",
		"192.0.2.0/24",    // TEST-NET-1
		"198.51.100.0/24", // TEST-NET-2
		"203.0.113.0/24",  // TEST-NET-3
		"::1/128",
		"fe80::/10",
		"fc00::/7",
		"2001:db8::/32", // documentation
	}
	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipNet, _ := net.ParseCIDR(c)
		nets = append(nets, ipNet)
	}
	return nets
}()

// IsBlocked returns true if the IP falls within a private or reserved range.
func IsBlocked(ip net.IP) bool {
	for _, cidr := range BlockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// IsPublic parses addr and reports whether it is a routable public address.
func IsPublic(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && !IsBlocked(ip)
}

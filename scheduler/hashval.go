package scheduler

import "net"

// Hashval computes the rate-limit heatmap bucket key for a target (spec §4.2):
// the containing /24 for an IPv4 address, the containing /48 for an IPv6
// address, and the target string itself verbatim for anything else
// (hostnames, CIDR ranges already wider than a single host, ...).
func Hashval(target string) string {
	ip := net.ParseIP(target)
	if ip == nil {
		return target
	}
	if v4 := ip.To4(); v4 != nil {
		return (&net.IPNet{IP: v4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}).String()
	}
	return (&net.IPNet{IP: ip.Mask(net.CIDRMask(48, 128)), Mask: net.CIDRMask(48, 128)}).String()
}

// EnumerateNetwork expands a single address or CIDR network into its
// constituent host addresses (spec §6), matching the teacher's habit of
// keeping pure, allocation-light helpers alongside the stateful service.
//
// A single address (prefix length == bit width) yields just that address.
// A point-to-point link (/31, /127) yields both addresses, no
// network/broadcast bookkeeping. Anything wider includes the network
// address, every host address, and — for IPv4 only — the broadcast address.
func EnumerateNetwork(cidr string) ([]string, error) {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil {
		// Accept a bare address too, the way the teacher's ip_network(arg,
		// strict=False) falls back to a single-host network.
		if addr := net.ParseIP(cidr); addr != nil {
			return []string{addr.String()}, nil
		}
		return nil, err
	}

	ones, bits := network.Mask.Size()
	if ones == bits {
		return []string{ip.String()}, nil
	}

	broadcast := broadcastAddr(network)
	if ones == bits-1 {
		return []string{network.IP.String(), broadcast.String()}, nil
	}

	var out []string
	out = append(out, network.IP.String())
	for addr := cloneIP(network.IP); network.Contains(addr); incIP(addr) {
		if addr.Equal(network.IP) || (bits == 32 && addr.Equal(broadcast)) {
			continue
		}
		out = append(out, addr.String())
	}
	if bits == 32 {
		out = append(out, broadcast.String())
	}

	return out, nil
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

func broadcastAddr(n *net.IPNet) net.IP {
	bcast := cloneIP(n.IP)
	for i := range bcast {
		bcast[i] |= ^n.Mask[i]
	}
	return bcast
}

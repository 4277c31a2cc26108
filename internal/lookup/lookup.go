// Package lookup sends DNS queries over an already established connection,
// such as a SOCKS5 UDP relay session or a proxied TCP stream.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"
)

// ErrRcode is returned, wrapped, when the server answers with an error code.
var ErrRcode = errors.New("lookup: server returned error")

// Query sends a recursive question for name and qtype over conn and returns
// the response. Datagram connections carry one message per datagram;
// stream connections use the two-byte length prefix of DNS over TCP. The
// ctx deadline, if any, bounds the exchange.
func Query(ctx context.Context, conn net.Conn, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	c := &dns.Client{UDPSize: dns.DefaultMsgSize}
	in, _, err := c.ExchangeWithConnContext(ctx, m, &dns.Conn{Conn: conn, UDPSize: dns.DefaultMsgSize})
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s: %w", name, dns.TypeToString[qtype], err)
	}
	if in.Id != m.Id {
		return nil, fmt.Errorf("lookup %s: %w", name, dns.ErrId)
	}
	if in.Rcode != dns.RcodeSuccess {
		return in, fmt.Errorf("%w: %s", ErrRcode, dns.RcodeToString[in.Rcode])
	}
	return in, nil
}

// Addresses returns the A and AAAA records of msg's answer section.
func Addresses(msg *dns.Msg) []netip.Addr {
	var addrs []netip.Addr
	for _, rr := range msg.Answer {
		var ip net.IP
		switch t := rr.(type) {
		case *dns.A:
			ip = t.A
		case *dns.AAAA:
			ip = t.AAAA
		default:
			continue
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, a.Unmap())
		}
	}
	return addrs
}

package socks5

import (
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"strconv"
)

// Addr is a SOCKS address: a host in one of the three wire encodings and a
// port. It is returned as the bound address of a request reply and as the
// source of a relay datagram.
type Addr struct {
	Type byte
	Host string
	Port uint16
}

// Network implements net.Addr.
func (a *Addr) Network() string {
	return "socks5"
}

// String returns host:port, bracketing IPv6 hosts.
func (a *Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// ParseAddr parses a "host:port" address with a numeric port.
func ParseAddr(address string) (*Addr, error) {
	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return nil, invalidArgf("address %q: %v", address, err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return nil, invalidArgf("address %q: invalid port", address)
	}
	return &Addr{Type: hostType(host), Host: host, Port: uint16(port)}, nil
}

// EncodeHost encodes host as ATYP followed by address bytes. IPv4 and IPv6
// literals use their raw forms; anything else is sent as a domain name,
// which must fit the one-byte length field.
func EncodeHost(host string) ([]byte, error) {
	return appendHost(nil, host)
}

// AppendAddr appends the encoded host and big-endian port to b.
func AppendAddr(b []byte, host string, port uint16) ([]byte, error) {
	b, err := appendHost(b, host)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint16(b, port), nil
}

func appendHost(b []byte, host string) ([]byte, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		// Zones cannot be carried on the wire.
		ip = ip.WithZone("")
		if ip.Is4() {
			a := ip.As4()
			return append(append(b, AtypIPv4), a[:]...), nil
		}
		a := ip.As16()
		return append(append(b, AtypIPv6), a[:]...), nil
	}

	if host == "" {
		return nil, invalidArgf("empty host")
	}
	if len(host) > maxFieldLen {
		return nil, invalidArgf("domain name is too long (%d bytes)", len(host))
	}
	b = append(b, AtypDomain, byte(len(host)))
	return append(b, host...), nil
}

func hostType(host string) byte {
	ip, err := netip.ParseAddr(host)
	switch {
	case err != nil:
		return AtypDomain
	case ip.Is4():
		return AtypIPv4
	default:
		return AtypIPv6
	}
}

// DecodeHost reads an address of type atyp from r and returns its literal
// form: a dotted quad, a domain name, or canonical colon-hex.
func DecodeHost(atyp byte, r io.Reader) (string, error) {
	switch atyp {
	case AtypIPv4:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		return netip.AddrFrom4(b).String(), nil
	case AtypDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return "", err
		}
		b := make([]byte, int(n[0]))
		if _, err := io.ReadFull(r, b); err != nil {
			return "", err
		}
		return string(b), nil
	case AtypIPv6:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		return netip.AddrFrom16(b).String(), nil
	default:
		return "", protocolErrf("unknown address type 0x%02x", atyp)
	}
}

// ReadAddr reads ATYP, the address and the big-endian port from r.
func ReadAddr(r io.Reader) (*Addr, error) {
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return nil, err
	}
	return readAddr(r, atyp[0])
}

func readAddr(r io.Reader, atyp byte) (*Addr, error) {
	host, err := DecodeHost(atyp, r)
	if err != nil {
		return nil, err
	}
	var p [2]byte
	if _, err := io.ReadFull(r, p[:]); err != nil {
		return nil, err
	}
	return &Addr{Type: atyp, Host: host, Port: binary.BigEndian.Uint16(p[:])}, nil
}

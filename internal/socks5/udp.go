package socks5

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// maxHeaderLen is the largest relay datagram header: RSV(2) FRAG(1) ATYP(1)
// and a 255 byte domain with its length byte, then PORT(2).
const maxHeaderLen = 262

// RelayPolicy selects where a relay session sends its datagrams.
type RelayPolicy int

const (
	// RelayViaControlPeer sends to the host of the control stream's peer
	// on the port the server reported. Servers behind NAT or bound to a
	// wildcard address often report a host the client cannot reach.
	RelayViaControlPeer RelayPolicy = iota

	// RelayViaBoundAddress sends to the address the server reported,
	// using the control peer's host when the report is an unspecified
	// address or a domain name.
	RelayViaBoundAddress
)

func (p RelayPolicy) String() string {
	switch p {
	case RelayViaControlPeer:
		return "peer"
	case RelayViaBoundAddress:
		return "reported"
	default:
		return "RelayPolicy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseRelayPolicy parses "peer" or "reported".
func ParseRelayPolicy(s string) (RelayPolicy, error) {
	switch s {
	case "peer":
		return RelayViaControlPeer, nil
	case "reported":
		return RelayViaBoundAddress, nil
	default:
		return 0, invalidArgf("relay policy %q (want peer or reported)", s)
	}
}

type associateOptions struct {
	policy RelayPolicy
}

// AssociateOption configures Associate.
type AssociateOption func(*associateOptions)

// WithRelayPolicy overrides the default RelayViaControlPeer policy.
func WithRelayPolicy(p RelayPolicy) AssociateOption {
	return func(o *associateOptions) {
		o.policy = p
	}
}

// Datagram is a deframed relay datagram.
type Datagram struct {
	// Payload is the application data with all relay framing removed.
	Payload []byte
	// Source is the peer address carried in the datagram header.
	Source *Addr
	// Relay is the UDP address the datagram arrived from.
	Relay net.Addr
}

// RelaySession is an established UDP association. It implements both
// net.PacketConn, addressing logical peers through the relay, and net.Conn
// once a default destination is set with Connect.
//
// The association lasts as long as the control stream stays open; the
// server ends it when that stream closes. Close closes both.
type RelaySession struct {
	conn    *net.UDPConn
	control net.Conn
	relay   *net.UDPAddr
	bound   *Addr
	dst     *Addr
}

var (
	_ net.PacketConn = (*RelaySession)(nil)
	_ net.Conn       = (*RelaySession)(nil)
)

// Associate negotiates on control, a stream already connected to the SOCKS
// server, requests UDP ASSOCIATE for bindHost:bindPort, and binds a local
// UDP socket there, connected to the server's relay.
//
// On error the caller keeps ownership of control. On success the returned
// session owns it.
func Associate(ctx context.Context, control net.Conn, bindHost, bindPort string, auth Auth, opts ...AssociateOption) (*RelaySession, error) {
	o := associateOptions{policy: RelayViaControlPeer}
	for _, opt := range opts {
		opt(&o)
	}

	port, err := lookupPort(ctx, "udp", bindPort)
	if err != nil {
		return nil, err
	}
	laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(bindHost, strconv.Itoa(int(port))))
	if err != nil {
		return nil, invalidArgf("bind address: %v", err)
	}

	if _, err := Negotiate(control, auth); err != nil {
		return nil, err
	}
	bound, err := Connect(ctx, control, CmdUDPAssociate, bindHost, bindPort)
	if err != nil {
		return nil, err
	}

	relay, err := relayAddr(control.RemoteAddr(), bound, o.policy)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", laddr, relay)
	if err != nil {
		return nil, fmt.Errorf("relay socket: %w", err)
	}

	return &RelaySession{conn: conn, control: control, relay: relay, bound: bound}, nil
}

func relayAddr(peer net.Addr, bound *Addr, policy RelayPolicy) (*net.UDPAddr, error) {
	if policy == RelayViaBoundAddress && bound.Type != AtypDomain {
		if ip, err := netip.ParseAddr(bound.Host); err == nil && !ip.IsUnspecified() {
			return net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, bound.Port)), nil
		}
	}

	if peer == nil {
		return nil, protocolErrf("control stream has no peer address")
	}
	ap, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return nil, protocolErrf("control peer %q: %v", peer.String(), err)
	}
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(ap.Addr().Unmap(), bound.Port)), nil
}

// Connect sets the default destination used by Write and Read, and
// reported by RemoteAddr. It does not send anything.
func (s *RelaySession) Connect(host string, port uint16) error {
	if _, err := EncodeHost(host); err != nil {
		return err
	}
	s.dst = &Addr{Type: hostType(host), Host: host, Port: port}
	return nil
}

// Send frames payload for host:port and transmits it as one datagram. It
// fails with ErrAlreadyConnected once a default destination is set.
func (s *RelaySession) Send(payload []byte, host string, port uint16) (int, error) {
	if s.dst != nil {
		return 0, ErrAlreadyConnected
	}
	return s.send(payload, host, port)
}

func (s *RelaySession) send(payload []byte, host string, port uint16) (int, error) {
	// RSV RSV FRAG; fragments are never produced.
	b, err := AppendAddr([]byte{0x00, 0x00, 0x00}, host, port)
	if err != nil {
		return 0, err
	}
	b = append(b, payload...)

	if _, err := s.conn.Write(b); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// Receive blocks for the next datagram from the relay. Payloads longer than
// maxLen are truncated. Fragmented datagrams are rejected with
// ErrFragmented; the caller may keep receiving.
func (s *RelaySession) Receive(maxLen int) (*Datagram, error) {
	if maxLen < 0 {
		return nil, invalidArgf("negative receive length %d", maxLen)
	}
	buf := make([]byte, maxLen+maxHeaderLen)
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return deframe(buf[:n], maxLen, from)
}

func deframe(b []byte, maxLen int, from net.Addr) (*Datagram, error) {
	if len(b) < 4 {
		return nil, protocolErrf("short datagram (%d bytes)", len(b))
	}
	if b[2] != 0x00 {
		return nil, fmt.Errorf("%w: index %d", ErrFragmented, b[2])
	}

	r := bytes.NewReader(b[3:])
	src, err := ReadAddr(r)
	if err != nil {
		if errors.Is(err, ErrProtocol) {
			return nil, err
		}
		return nil, protocolErrf("truncated datagram header: %v", err)
	}

	payload := b[len(b)-r.Len():]
	if len(payload) > maxLen {
		payload = payload[:maxLen]
	}
	return &Datagram{Payload: payload, Source: src, Relay: from}, nil
}

// ReadFrom implements net.PacketConn. addr is the peer named in the
// datagram header.
func (s *RelaySession) ReadFrom(p []byte) (int, net.Addr, error) {
	d, err := s.Receive(len(p))
	if err != nil {
		return 0, nil, err
	}
	return copy(p, d.Payload), d.Source, nil
}

// WriteTo implements net.PacketConn. addr must print as host:port with a
// numeric port.
func (s *RelaySession) WriteTo(p []byte, addr net.Addr) (int, error) {
	if s.dst != nil {
		return 0, ErrAlreadyConnected
	}
	a, err := ParseAddr(addr.String())
	if err != nil {
		return 0, err
	}
	return s.send(p, a.Host, a.Port)
}

// Read implements net.Conn.
func (s *RelaySession) Read(p []byte) (int, error) {
	n, _, err := s.ReadFrom(p)
	return n, err
}

// Write implements net.Conn, sending p to the default destination.
func (s *RelaySession) Write(p []byte) (int, error) {
	if s.dst == nil {
		return 0, ErrDestinationRequired
	}
	return s.send(p, s.dst.Host, s.dst.Port)
}

// Close closes the UDP socket and the control stream, ending the
// association.
func (s *RelaySession) Close() error {
	return errors.Join(s.conn.Close(), s.control.Close())
}

// LocalAddr returns the address of the local UDP socket.
func (s *RelaySession) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the default destination, or nil before Connect.
func (s *RelaySession) RemoteAddr() net.Addr {
	if s.dst == nil {
		return nil
	}
	return s.dst
}

// RelayAddr returns the UDP address datagrams are sent to.
func (s *RelaySession) RelayAddr() *net.UDPAddr {
	return s.relay
}

// BoundAddr returns the relay address as reported by the server.
func (s *RelaySession) BoundAddr() *Addr {
	return s.bound
}

func (s *RelaySession) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

func (s *RelaySession) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *RelaySession) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

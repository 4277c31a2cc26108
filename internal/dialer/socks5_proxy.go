package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/die-net/socksify/internal/socks5"
)

// SOCKS5ProxyDialer dials through a SOCKS5 server: TCP with CONNECT and UDP
// with UDP ASSOCIATE.
type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	auth      socks5.Auth
	direct    Dialer
}

// NewSOCKS5ProxyDialer constructs a dialer for the SOCKS5 server at
// proxyAddr. If username is non-empty, username/password authentication is
// offered.
func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, username, password string) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		auth:      socks5.Auth{Username: username, Password: password},
		direct:    NewDirectDialer(cfg),
	}
}

// ProxyAddr returns the proxy host:port.
func (f *SOCKS5ProxyDialer) ProxyAddr() string {
	return f.proxyAddr
}

// DialContext connects to address through the proxy. For "udp" networks the
// returned net.Conn is a *socks5.RelaySession whose default destination is
// address.
//
// If NegotiationTimeout is set, a deadline is applied to the proxy
// connection during negotiation and cleared before returning.
func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return f.dialTCP(ctx, address)
	case "udp", "udp4", "udp6":
		return f.dialUDP(ctx, address)
	default:
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}
}

func (f *SOCKS5ProxyDialer) dialTCP(ctx context.Context, address string) (net.Conn, error) {
	c, err := f.direct.DialContext(ctx, "tcp", f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	err = f.negotiate(ctx, c, func() error {
		_, err := socks5.ClientDial(ctx, c, f.auth, address)
		return err
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial tcp %s: %w", address, err)
	}
	return c, nil
}

func (f *SOCKS5ProxyDialer) dialUDP(ctx context.Context, address string) (net.Conn, error) {
	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy dial udp %s: %w", address, err)
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "udp", p)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy dial udp %s: %w", address, err)
	}

	c, err := f.direct.DialContext(ctx, "tcp", f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	var session *socks5.RelaySession
	err = f.negotiate(ctx, c, func() error {
		var err error
		session, err = socks5.Associate(ctx, c, bindHost(c.RemoteAddr()), "0", f.auth, socks5.WithRelayPolicy(f.cfg.RelayPolicy))
		return err
	})
	if err != nil {
		if session != nil {
			_ = session.Close()
		} else {
			_ = c.Close()
		}
		return nil, fmt.Errorf("socks5 proxy dial udp %s: %w", address, err)
	}

	if err := session.Connect(host, uint16(port)); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("socks5 proxy dial udp %s: %w", address, err)
	}
	return session, nil
}

// negotiate runs fn with the negotiation deadline applied to c and with
// ctx cancellation unblocking c's I/O.
func (f *SOCKS5ProxyDialer) negotiate(ctx context.Context, c net.Conn, fn func() error) error {
	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Unix(1, 0))
	})

	err := fn()
	if !stop() {
		return context.Cause(ctx)
	}
	if err != nil {
		return err
	}

	_ = c.SetDeadline(time.Time{})
	return nil
}

// bindHost returns the wildcard address of the control connection's family.
func bindHost(peer net.Addr) string {
	if tcp, ok := peer.(*net.TCPAddr); ok && tcp.IP.To4() == nil {
		return "::"
	}
	return "0.0.0.0"
}

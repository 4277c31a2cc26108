package testutil

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/sync/errgroup"
)

// SOCKS5Server is a minimal SOCKS5 server for exercising clients. It serves
// CONNECT by dialing the requested address and UDP ASSOCIATE with a local
// relay whose datagrams go to HandleUDP.
type SOCKS5Server struct {
	// Username and Password, when Username is set, require RFC 1929 auth.
	Username string
	Password string

	// Reply, when non-zero, is sent as the REP code of every request.
	Reply byte

	// ReportedHost is the BND.ADDR host sent for UDP ASSOCIATE. Empty
	// reports 0.0.0.0, as many servers bound to a wildcard do.
	ReportedHost string

	// HandleUDP returns the raw datagram to send back for a relayed
	// datagram, or nil to drop it. The default echoes raw unchanged.
	HandleUDP func(d *txsocks5.Datagram, raw []byte) []byte

	mu       sync.Mutex
	requests []*txsocks5.Request
	methods  [][]byte
}

// Requests returns the requests received so far.
func (s *SOCKS5Server) Requests() []*txsocks5.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*txsocks5.Request(nil), s.requests...)
}

// Methods returns the method lists offered by clients so far.
func (s *SOCKS5Server) Methods() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.methods...)
}

// StartSOCKS5Server serves s on a loopback listener until the test ends.
func StartSOCKS5Server(t *testing.T, ctx context.Context, s *SOCKS5Server) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				stop := context.AfterFunc(ctx, func() { _ = c.Close() })
				defer stop()
				_ = s.handle(ctx, c)
			}()
		}
	}()

	return ln
}

func (s *SOCKS5Server) handle(ctx context.Context, c net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.methods = append(s.methods, neg.Methods)
	s.mu.Unlock()

	if s.Username != "" {
		if !containsMethod(neg.Methods, txsocks5.MethodUsernamePassword) {
			_, _ = txsocks5.NewNegotiationReply(txsocks5.MethodUnsupportAll).WriteTo(c)
			return nil
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(c); err != nil {
			return err
		}

		urq, err := txsocks5.NewUserPassNegotiationRequestFrom(c)
		if err != nil {
			return err
		}
		if string(urq.Uname) != s.Username || string(urq.Passwd) != s.Password {
			_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(c)
			return nil
		}
		if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(c); err != nil {
			return err
		}
	} else if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(c); err != nil {
		return err
	}

	req, err := txsocks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Reply != txsocks5.RepSuccess {
		return writeZeroReply(c, s.Reply)
	}

	switch req.Cmd {
	case txsocks5.CmdConnect:
		return s.connect(ctx, c, req)
	case txsocks5.CmdUDP:
		return s.associate(c)
	default:
		return writeZeroReply(c, txsocks5.RepCommandNotSupported)
	}
}

func (s *SOCKS5Server) connect(ctx context.Context, c net.Conn, req *txsocks5.Request) error {
	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		return writeZeroReply(c, txsocks5.RepHostUnreachable)
	}
	defer dst.Close()

	if err := writeReply(c, dst.LocalAddr().String()); err != nil {
		return err
	}

	// Each leg half-closes so the other direction can drain.
	g := errgroup.Group{}
	g.Go(func() error {
		_, err := io.Copy(dst, c)
		closeWrite(dst)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(c, dst)
		closeWrite(c)
		return err
	})
	return g.Wait()
}

func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}

func (s *SOCKS5Server) associate(c net.Conn) error {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		_ = writeZeroReply(c, txsocks5.RepServerFailure)
		return err
	}
	defer pc.Close()

	host := s.ReportedHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := pc.LocalAddr().(*net.UDPAddr).Port
	if err := writeReply(c, net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		return err
	}

	// The association ends when the control stream closes.
	go func() {
		_, _ = io.Copy(io.Discard, c)
		_ = pc.Close()
	}()

	handle := s.HandleUDP
	if handle == nil {
		handle = func(_ *txsocks5.Datagram, raw []byte) []byte { return raw }
	}

	buf := make([]byte, 65535)
	for {
		n, from, err := pc.ReadFromUDP(buf)
		if err != nil {
			return nil
		}
		raw := append([]byte(nil), buf[:n]...)
		d, err := txsocks5.NewDatagramFromBytes(raw)
		if err != nil {
			continue
		}
		if out := handle(d, raw); out != nil {
			_, _ = pc.WriteToUDP(out, from)
		}
	}
}

func writeReply(c net.Conn, address string) error {
	a, addr, port, err := txsocks5.ParseAddress(address)
	if err != nil {
		return err
	}
	if a == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	_, err = txsocks5.NewReply(txsocks5.RepSuccess, a, addr, port).WriteTo(c)
	return err
}

func writeZeroReply(c net.Conn, rep byte) error {
	_, err := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
	return err
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}

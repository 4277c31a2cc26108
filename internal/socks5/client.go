package socks5

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

// ClientDial negotiates authentication on rw and issues a CONNECT for
// address, a "host:port" string whose port may be a service name such as
// "http". It returns the address the server bound for the connection; on
// success rw is ready for application data.
//
// The request is encoded before anything is written, so an address that
// cannot be represented on the wire fails without touching rw.
func ClientDial(ctx context.Context, rw io.ReadWriter, auth Auth, address string) (*Addr, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, invalidArgf("address %q: %v", address, err)
	}

	req, err := newRequest(ctx, CmdConnect, host, port)
	if err != nil {
		return nil, err
	}

	if _, err := Negotiate(rw, auth); err != nil {
		return nil, err
	}
	return sendRequest(rw, req)
}

// Negotiate runs the method selection exchange and, if the server picks it,
// the username/password subnegotiation. MethodNone is always offered first;
// MethodUsernamePassword is offered as well when auth carries a username.
// It returns the method the server selected.
func Negotiate(rw io.ReadWriter, auth Auth) (byte, error) {
	methods := []byte{MethodNone}
	if auth.supplied() {
		if err := auth.validate(); err != nil {
			return 0, err
		}
		methods = append(methods, MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(rw); err != nil {
		return 0, fmt.Errorf("write negotiation: %w", err)
	}

	var rep [2]byte
	if _, err := io.ReadFull(rw, rep[:]); err != nil {
		return 0, fmt.Errorf("read negotiation: %w", err)
	}
	if rep[0] != Version {
		return 0, fmt.Errorf("%w: server replied with version %d", ErrUnsupportedProtocol, rep[0])
	}

	switch rep[1] {
	case MethodNone:
		return MethodNone, nil
	case MethodUsernamePassword:
		if !auth.supplied() {
			return 0, fmt.Errorf("%w: server requires username/password", ErrNoAcceptableMethods)
		}
		if err := authenticate(rw, auth); err != nil {
			return 0, err
		}
		return MethodUsernamePassword, nil
	case MethodNoAcceptable:
		return 0, ErrNoAcceptableMethods
	default:
		return 0, fmt.Errorf("%w: server selected method 0x%02x", ErrNoAcceptableMethods, rep[1])
	}
}

// authenticate performs the RFC 1929 exchange.
func authenticate(rw io.ReadWriter, auth Auth) error {
	if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(rw); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}

	var rep [2]byte
	if _, err := io.ReadFull(rw, rep[:]); err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if rep[1] != txsocks5.UserPassStatusSuccess {
		return &AuthError{Username: auth.Username, Status: rep[1]}
	}
	return nil
}

// Connect sends a request for cmd (CmdConnect or CmdUDPAssociate) to
// host:port and reads the reply. Negotiate must have succeeded on rw first.
// port may be numeric or a service name. It returns the bound address from
// the reply.
func Connect(ctx context.Context, rw io.ReadWriter, cmd byte, host, port string) (*Addr, error) {
	req, err := newRequest(ctx, cmd, host, port)
	if err != nil {
		return nil, err
	}
	return sendRequest(rw, req)
}

func newRequest(ctx context.Context, cmd byte, host, port string) ([]byte, error) {
	network := "tcp"
	switch cmd {
	case CmdConnect:
	case CmdUDPAssociate:
		network = "udp"
	default:
		return nil, invalidArgf("unsupported command 0x%02x", cmd)
	}

	p, err := lookupPort(ctx, network, port)
	if err != nil {
		return nil, err
	}

	return AppendAddr([]byte{Version, cmd, 0x00}, host, p)
}

func sendRequest(rw io.ReadWriter, req []byte) (*Addr, error) {
	if _, err := rw.Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	// VER REP RSV ATYP
	var hdr [4]byte
	if _, err := io.ReadFull(rw, hdr[:]); err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("%w: server replied with version %d", ErrUnsupportedProtocol, hdr[0])
	}
	if hdr[1] != RepSuccess {
		return nil, &ReplyError{Code: hdr[1]}
	}

	bound, err := readAddr(rw, hdr[3])
	if err != nil {
		return nil, fmt.Errorf("read bound address: %w", err)
	}
	return bound, nil
}

// lookupPort resolves a numeric port or a service name for network.
func lookupPort(ctx context.Context, network, port string) (uint16, error) {
	if n, err := strconv.ParseUint(port, 10, 16); err == nil {
		return uint16(n), nil
	}
	n, err := net.DefaultResolver.LookupPort(ctx, network, port)
	if err != nil {
		return 0, invalidArgf("port %q: %v", port, err)
	}
	return uint16(n), nil
}

package socks5

import (
	"errors"
	"fmt"

	txsocks5 "github.com/txthinking/socks5"
)

var (
	ErrUnsupportedProtocol = errors.New("socks5: unsupported protocol version")
	ErrNoAcceptableMethods = errors.New("socks5: no acceptable authentication methods")
	ErrProtocol            = errors.New("socks5: protocol error")
	ErrInvalidArgument     = errors.New("socks5: invalid argument")

	// ErrFragmented is returned for relay datagrams with a non-zero FRAG
	// field; reassembly is not supported.
	ErrFragmented = fmt.Errorf("%w: fragmented datagram", ErrProtocol)

	ErrWouldBlock          = errors.New("socks5: no datagram available")
	ErrAlreadyConnected    = errors.New("socks5: relay session already has a destination")
	ErrDestinationRequired = errors.New("socks5: destination address required")
)

// Reply codes of a CONNECT or UDP ASSOCIATE response.
const (
	RepSuccess             = txsocks5.RepSuccess
	RepServerFailure       = txsocks5.RepServerFailure
	RepNotAllowed          = txsocks5.RepNotAllowed
	RepNetworkUnreachable  = txsocks5.RepNetworkUnreachable
	RepHostUnreachable     = txsocks5.RepHostUnreachable
	RepConnectionRefused   = txsocks5.RepConnectionRefused
	RepTTLExpired          = txsocks5.RepTTLExpired
	RepCommandNotSupported = txsocks5.RepCommandNotSupported
	RepAddressNotSupported = txsocks5.RepAddressNotSupported
)

// AuthError reports a rejected username/password subnegotiation.
type AuthError struct {
	Username string
	Status   byte
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("socks5: authentication failed: username: %s, status: %d", e.Username, e.Status)
}

// ReplyError reports a non-zero REP field in a request reply.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5: relay request failed: %s (0x%02x)", e.Reason(), e.Code)
}

// Reason returns the RFC 1928 description of the reply code.
func (e *ReplyError) Reason() string {
	switch e.Code {
	case RepServerFailure:
		return "general SOCKS server failure"
	case RepNotAllowed:
		return "connection not allowed by ruleset"
	case RepNetworkUnreachable:
		return "Network unreachable"
	case RepHostUnreachable:
		return "Host unreachable"
	case RepConnectionRefused:
		return "Connection refused"
	case RepTTLExpired:
		return "TTL expired"
	case RepCommandNotSupported:
		return "Command not supported"
	case RepAddressNotSupported:
		return "Address type not supported"
	default:
		return "Unknown error"
	}
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func protocolErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

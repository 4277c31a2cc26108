package socks5

import (
	txsocks5 "github.com/txthinking/socks5"
)

// Version is the SOCKS protocol version spoken on the wire.
const Version = txsocks5.Ver

// Authentication methods.
const (
	MethodNone             = txsocks5.MethodNone
	MethodGSSAPI           = txsocks5.MethodGSSAPI
	MethodUsernamePassword = txsocks5.MethodUsernamePassword
	MethodNoAcceptable     = txsocks5.MethodUnsupportAll
)

// Commands. BIND is not supported.
const (
	CmdConnect      = txsocks5.CmdConnect
	CmdUDPAssociate = txsocks5.CmdUDP
)

// Address types.
const (
	AtypIPv4   = txsocks5.ATYPIPv4
	AtypDomain = txsocks5.ATYPDomain
	AtypIPv6   = txsocks5.ATYPIPv6
)

// maxFieldLen is the largest value a one-byte length field can carry.
const maxFieldLen = 255

// Auth configures optional username/password authentication for SOCKS5
// negotiation. Credentials are offered to the server only when Username is
// non-empty.
type Auth struct {
	Username string
	Password string
}

func (a Auth) supplied() bool {
	return a.Username != ""
}

func (a Auth) validate() error {
	if len(a.Username) > maxFieldLen {
		return invalidArgf("username is too long (%d bytes)", len(a.Username))
	}
	if len(a.Password) > maxFieldLen {
		return invalidArgf("password is too long (%d bytes)", len(a.Password))
	}
	return nil
}

package rules

import (
	"fmt"
	"net"
	"strconv"
)

// Rule is implemented by *DirectRule and *ProxyRule only.
type Rule interface {
	// Direct reports whether matching hosts bypass the proxy.
	Direct() bool
	// HostPatterns returns a copy of the rule's patterns.
	HostPatterns() []Pattern
	// Match reports whether host matches one of the rule's patterns.
	Match(host string) bool

	rule()
}

type base struct {
	patterns []Pattern
	matcher  *Matcher
}

func newBase(patterns []Pattern) (base, error) {
	m, err := Compile(patterns)
	if err != nil {
		return base{}, err
	}
	return base{patterns: append([]Pattern(nil), patterns...), matcher: m}, nil
}

func (b *base) HostPatterns() []Pattern {
	return append([]Pattern(nil), b.patterns...)
}

func (b *base) Match(host string) bool {
	return b.matcher.Match(host)
}

func (b *base) rule() {}

// DirectRule sends matching hosts straight to the destination.
type DirectRule struct {
	base
}

// NewDirectRule returns a rule connecting hosts matching patterns directly.
func NewDirectRule(patterns []Pattern) (*DirectRule, error) {
	b, err := newBase(patterns)
	if err != nil {
		return nil, err
	}
	return &DirectRule{base: b}, nil
}

func (*DirectRule) Direct() bool { return true }

// ProxyRule sends matching hosts through a SOCKS5 server.
type ProxyRule struct {
	base
	host     string
	port     uint16
	username string
	password string
}

// NewProxyRule returns a rule routing hosts matching patterns through
// server, given as "host:port". An empty username disables
// username/password authentication.
func NewProxyRule(patterns []Pattern, server, username, password string) (*ProxyRule, error) {
	host, p, err := net.SplitHostPort(server)
	if err != nil {
		return nil, fmt.Errorf("rules: invalid server %q: %w", server, err)
	}
	if host == "" {
		return nil, fmt.Errorf("rules: invalid server %q: missing host", server)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil || port == 0 {
		return nil, fmt.Errorf("rules: invalid server %q: bad port", server)
	}

	b, err := newBase(patterns)
	if err != nil {
		return nil, err
	}
	return &ProxyRule{
		base:     b,
		host:     host,
		port:     uint16(port),
		username: username,
		password: password,
	}, nil
}

func (*ProxyRule) Direct() bool { return false }

// Host returns the proxy host.
func (r *ProxyRule) Host() string { return r.host }

// Port returns the proxy port.
func (r *ProxyRule) Port() uint16 { return r.port }

// Server returns the proxy address as "host:port".
func (r *ProxyRule) Server() string {
	return net.JoinHostPort(r.host, strconv.Itoa(int(r.port)))
}

func (r *ProxyRule) Username() string { return r.username }

func (r *ProxyRule) Password() string { return r.password }

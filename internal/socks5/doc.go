// Package socks5 implements the client side of SOCKS version 5 (RFC 1928)
// with optional username/password authentication (RFC 1929).
//
// It covers method negotiation, the CONNECT and UDP ASSOCIATE requests, the
// address codec shared by requests, replies and relay datagrams, and a UDP
// relay session that frames and deframes datagrams exchanged with the
// server's relay endpoint.
//
// The package never dials TCP itself: callers hand it an already connected
// stream to the SOCKS server. Only the UDP socket of a relay session is
// created here. Nothing in this package applies timeouts; deadlines and
// cancellation belong to the caller's connection.
//
// BIND, GSSAPI and fragmented relay datagrams are not supported.
package socks5

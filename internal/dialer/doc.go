// Package dialer provides the outbound dialers used by socksify.
//
// Dialers implement a small interface (DialContext). A direct dialer
// connects to the destination itself; a SOCKS5 proxy dialer reaches it
// through a SOCKS5 server, using CONNECT for TCP and UDP ASSOCIATE for UDP;
// a rule dialer picks one of these per destination host from a
// rules.RuleSet.
package dialer

// Package rules decides, per destination host, whether a connection goes
// direct or through a particular SOCKS5 proxy.
//
// A rule carries a list of host patterns, literal hostnames or regular
// expressions, compiled once into a single Matcher. A RuleSet is an
// ordered list of rules; Resolve returns the first rule whose patterns
// match. Rules and rule sets are immutable and safe for concurrent use.
package rules

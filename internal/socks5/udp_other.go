//go:build !unix

package socks5

import "errors"

// TryReceive is not available on this platform.
func (s *RelaySession) TryReceive(maxLen int) (*Datagram, error) {
	return nil, errors.ErrUnsupported
}

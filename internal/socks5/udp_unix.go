//go:build unix

package socks5

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// TryReceive is the non-blocking form of Receive: it performs a single
// recvfrom on the relay socket and returns ErrWouldBlock if no datagram is
// queued. Deframing is the same as Receive.
func (s *RelaySession) TryReceive(maxLen int) (*Datagram, error) {
	if maxLen < 0 {
		return nil, invalidArgf("negative receive length %d", maxLen)
	}
	rc, err := s.conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, maxLen+maxHeaderLen)
	var (
		n    int
		from unix.Sockaddr
		rerr error
	)
	// Returning true skips the poller wait.
	err = rc.Read(func(fd uintptr) bool {
		n, from, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("recvfrom: %w", rerr)
	}

	return deframe(buf[:n], maxLen, s.sockaddrToUDP(from))
}

func (s *RelaySession) sockaddrToUDP(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)))
	case *unix.SockaddrInet6:
		return net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port)))
	default:
		// Connected sockets may not report the sender.
		return s.relay
	}
}

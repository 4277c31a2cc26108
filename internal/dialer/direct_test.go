package dialer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/die-net/socksify/internal/testutil"
)

func TestDirectDialer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tcpLn := testutil.StartEchoTCPServer(t, ctx)
	udpPc := testutil.StartEchoUDPServer(t)

	tests := []struct {
		network string
		address string
	}{
		{network: "tcp", address: tcpLn.Addr().String()},
		{network: "udp", address: udpPc.LocalAddr().String()},
	}

	d := NewDirectDialer(Config{DialTimeout: time.Second, KeepAlive: net.KeepAliveConfig{Enable: true}})
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			c, err := d.DialContext(ctx, tt.network, tt.address)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(time.Second))

			testutil.AssertEcho(t, c, c, []byte("hello"))
		})
	}
}

func TestDirectDialerFail(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	if _, err := NewDirectDialer(Config{}).DialContext(ctx, "tcp", addr); err == nil {
		t.Fatal("expected error")
	}
}

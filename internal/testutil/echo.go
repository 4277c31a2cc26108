package testutil

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
)

// StartEchoTCPServer accepts one connection and echoes back its first read.
func StartEchoTCPServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		buf := make([]byte, 1024)
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		_, _ = c.Write(buf[:n])
	}()

	return ln
}

// StartEchoUDPServer echoes every datagram back to its sender until the
// test ends.
func StartEchoUDPServer(t *testing.T) net.PacketConn {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 65535)
		for {
			n, from, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			_, _ = pc.WriteTo(buf[:n], from)
		}
	}()

	return pc
}

// AssertEcho writes msg to w and expects to read it back from r.
func AssertEcho(t *testing.T, w io.Writer, r io.Reader, msg []byte) {
	t.Helper()

	if _, err := w.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, msg) {
		t.Fatalf("expected %q got %q", string(msg), string(buf))
	}
}

// RecordingConn is an io.ReadWriter that records writes and serves reads
// from a fixed script. Reads past the script return io.EOF.
type RecordingConn struct {
	Written bytes.Buffer
	Script  bytes.Reader
}

// NewRecordingConn returns a RecordingConn whose reads return script.
func NewRecordingConn(script []byte) *RecordingConn {
	c := &RecordingConn{}
	c.Script.Reset(script)
	return c
}

func (c *RecordingConn) Read(p []byte) (int, error) {
	return c.Script.Read(p)
}

func (c *RecordingConn) Write(p []byte) (int, error) {
	return c.Written.Write(p)
}

package socks5

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want []byte
	}{
		{
			name: "ipv4",
			host: "8.8.4.4",
			want: []byte{AtypIPv4, 8, 8, 4, 4},
		},
		{
			name: "domain",
			host: "ya.ru",
			want: []byte{AtypDomain, 5, 'y', 'a', '.', 'r', 'u'},
		},
		{
			name: "ipv6",
			host: "fe80::42:c3ff:fe55:b636",
			want: []byte{AtypIPv6, 0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0x42, 0xc3, 0xff, 0xfe, 0x55, 0xb6, 0x36},
		},
		{
			name: "ipv4-mapped ipv6 stays ipv6",
			host: "::ffff:10.0.0.1",
			want: []byte{AtypIPv6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 10, 0, 0, 1},
		},
		{
			name: "zone is dropped",
			host: "fe80::1%eth0",
			want: []byte{AtypIPv6, 0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeHost(tt.host)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeHostInvalid(t *testing.T) {
	t.Parallel()

	for _, host := range []string{"", strings.Repeat("a", 256)} {
		if _, err := EncodeHost(host); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("host len %d: got %v want ErrInvalidArgument", len(host), err)
		}
	}
}

func TestHostRoundTrip(t *testing.T) {
	t.Parallel()

	hosts := []string{
		"127.0.0.1",
		"0.0.0.0",
		"::1",
		"2001:db8::8a2e:370:7334",
		"::ffff:192.168.0.2",
		"example.com",
		"nginx",
		strings.Repeat("x", 255),
	}

	for _, host := range hosts {
		b, err := EncodeHost(host)
		if err != nil {
			t.Fatalf("%q: %v", host, err)
		}
		got, err := DecodeHost(b[0], bytes.NewReader(b[1:]))
		if err != nil {
			t.Fatalf("%q: %v", host, err)
		}
		if got != host {
			t.Fatalf("expected %q got %q", host, got)
		}
	}
}

func TestDecodeHostUnknownType(t *testing.T) {
	t.Parallel()

	_, err := DecodeHost(0x02, bytes.NewReader([]byte{1, 2, 3, 4}))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v want ErrProtocol", err)
	}
}

func TestDecodeHostShort(t *testing.T) {
	t.Parallel()

	if _, err := DecodeHost(AtypIPv6, bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error")
	}
	if _, err := DecodeHost(AtypDomain, bytes.NewReader([]byte{5, 'a'})); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppendAddrReadAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		port uint16
		str  string
	}{
		{host: "8.8.4.4", port: 53, str: "8.8.4.4:53"},
		{host: "ya.ru", port: 80, str: "ya.ru:80"},
		{host: "fe80::42:c3ff:fe55:b636", port: 257, str: "[fe80::42:c3ff:fe55:b636]:257"},
	}

	for _, tt := range tests {
		b, err := AppendAddr(nil, tt.host, tt.port)
		if err != nil {
			t.Fatal(err)
		}
		if p := uint16(b[len(b)-2])<<8 | uint16(b[len(b)-1]); p != tt.port {
			t.Fatalf("%s: port bytes %d want %d", tt.host, p, tt.port)
		}

		a, err := ReadAddr(bytes.NewReader(b))
		if err != nil {
			t.Fatal(err)
		}
		if a.Host != tt.host || a.Port != tt.port || a.Type != b[0] {
			t.Fatalf("got %+v", a)
		}
		if a.String() != tt.str {
			t.Fatalf("expected %q got %q", tt.str, a.String())
		}
	}
}

func TestParseAddr(t *testing.T) {
	t.Parallel()

	a, err := ParseAddr("[::1]:1080")
	if err != nil {
		t.Fatal(err)
	}
	if a.Type != AtypIPv6 || a.Host != "::1" || a.Port != 1080 {
		t.Fatalf("got %+v", a)
	}

	a, err = ParseAddr("echo:7")
	if err != nil {
		t.Fatal(err)
	}
	if a.Type != AtypDomain || a.Host != "echo" || a.Port != 7 {
		t.Fatalf("got %+v", a)
	}

	for _, bad := range []string{"echo", "echo:http", "echo:65536"} {
		if _, err := ParseAddr(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%q: got %v want ErrInvalidArgument", bad, err)
		}
	}
}

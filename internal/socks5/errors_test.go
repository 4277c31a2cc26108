package socks5

import (
	"errors"
	"strings"
	"testing"
)

func TestReplyErrorMessage(t *testing.T) {
	t.Parallel()

	err := error(&ReplyError{Code: RepConnectionRefused})
	if got := err.Error(); got != "socks5: relay request failed: Connection refused (0x05)" {
		t.Fatalf("unexpected message %q", got)
	}

	var repErr *ReplyError
	if !errors.As(err, &repErr) || repErr.Code != 0x05 {
		t.Fatalf("errors.As failed for %v", err)
	}
}

func TestSentinelWrapping(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrFragmented, ErrProtocol) {
		t.Fatal("ErrFragmented should wrap ErrProtocol")
	}

	err := invalidArgf("port %q", "x")
	if !errors.Is(err, ErrInvalidArgument) || !strings.HasSuffix(err.Error(), `port "x"`) {
		t.Fatalf("unexpected %v", err)
	}

	err = protocolErrf("short datagram")
	if !errors.Is(err, ErrProtocol) || errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unexpected %v", err)
	}
}

func TestAuthValidate(t *testing.T) {
	t.Parallel()

	if (Auth{}).supplied() {
		t.Fatal("empty auth should not be supplied")
	}
	if !(Auth{Username: "u"}).supplied() {
		t.Fatal("username should mark auth as supplied")
	}
	if err := (Auth{Username: strings.Repeat("u", 256)}).validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

package dialer

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksify/internal/socks5"
)

type Config struct {
	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig

	// RelayPolicy selects the UDP relay address for proxied UDP dials.
	RelayPolicy socks5.RelayPolicy

	// Logger receives per-dial debug logs. Nil disables logging.
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

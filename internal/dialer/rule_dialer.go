package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/die-net/socksify/internal/rules"
)

// Route describes how RuleDialer reaches a host.
type Route struct {
	// Rule is the first matching rule, or nil when the fallback is used.
	Rule rules.Rule
	// Dialer is the dialer the connection goes through.
	Dialer Dialer
}

// String returns "direct", "socks5://host:port" or "fallback".
func (r Route) String() string {
	switch rule := r.Rule.(type) {
	case nil:
		return "fallback"
	case *rules.ProxyRule:
		return "socks5://" + rule.Server()
	default:
		return "direct"
	}
}

// RuleDialer routes each dial by the destination host: the first matching
// rule of a rules.RuleSet picks a direct or SOCKS5 proxy dialer, and hosts
// no rule matches go to the fallback. A failed dial is returned as is; there
// is no retry through another route.
type RuleDialer struct {
	rules    *rules.RuleSet
	direct   Dialer
	fallback Dialer
	proxies  map[*rules.ProxyRule]Dialer
	log      *zap.Logger
}

// NewRuleDialer builds a RuleDialer for set. A nil fallback dials directly,
// so an empty set behaves as no proxying at all.
func NewRuleDialer(cfg Config, set *rules.RuleSet, fallback Dialer) *RuleDialer {
	direct := NewDirectDialer(cfg)
	if fallback == nil {
		fallback = direct
	}

	proxies := make(map[*rules.ProxyRule]Dialer)
	for _, r := range set.Rules() {
		if pr, ok := r.(*rules.ProxyRule); ok {
			proxies[pr] = NewSOCKS5ProxyDialer(cfg, pr.Server(), pr.Username(), pr.Password())
		}
	}

	return &RuleDialer{
		rules:    set,
		direct:   direct,
		fallback: fallback,
		proxies:  proxies,
		log:      cfg.logger(),
	}
}

// Route resolves host against the rule set.
func (d *RuleDialer) Route(host string) Route {
	switch rule := d.rules.Resolve(host).(type) {
	case nil:
		return Route{Dialer: d.fallback}
	case *rules.ProxyRule:
		return Route{Rule: rule, Dialer: d.proxies[rule]}
	default:
		return Route{Rule: rule, Dialer: d.direct}
	}
}

func (d *RuleDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	route := d.Route(host)
	log := d.log.With(
		zap.String("trace_id", uuid.NewString()),
		zap.String("network", network),
		zap.String("address", address),
		zap.Stringer("route", route),
	)
	log.Debug("dialing")

	c, err := route.Dialer.DialContext(ctx, network, address)
	if err != nil {
		log.Debug("dial failed", zap.Error(err))
		return nil, err
	}
	log.Debug("connected", zap.Stringer("local_addr", c.LocalAddr()))
	return c, nil
}

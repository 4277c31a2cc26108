package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksify/internal/config"
	"github.com/die-net/socksify/internal/dialer"
	"github.com/die-net/socksify/internal/lookup"
	"github.com/die-net/socksify/internal/rules"
	"github.com/die-net/socksify/internal/socks5"
)

const usage = `Usage: socksify [flags] COMMAND ARG

Commands:
  route HOST          print the route chosen for HOST
  connect HOST:PORT   connect through the chosen route and pipe stdin/stdout
  dns NAME            resolve NAME with --dns-server, routed like any UDP dial

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("socksify", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	var (
		rulesPath          = fs.String("rules", "", "Rule file (.ini, .yaml or .yml). Empty sends every host to --fallback.")
		fallback           = fs.String("fallback", defaultFallback(), "Route for hosts no rule matches: direct:// | socks5://[user:pass@]host[:port]")
		dialTimeout        = fs.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = fs.Duration("negotiation-timeout", 10*time.Second, "Timeout for SOCKS5 negotiation with a proxy")
		tcpKeepAlive       = fs.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		relayAddress       = fs.String("relay-address", "peer", "UDP relay address: peer (proxy host, reported port) | reported (address in the proxy's reply)")
		dnsServer          = fs.String("dns-server", "8.8.8.8:53", "DNS server used by the dns command")
		verbose            = fs.Bool("verbose", false, "Enable per-dial debug logging")
	)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected a command and one argument")
	}
	cmd, arg := fs.Arg(0), fs.Arg(1)

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}
	policy, err := socks5.ParseRelayPolicy(*relayAddress)
	if err != nil {
		return fmt.Errorf("invalid --relay-address: %w", err)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var set *rules.RuleSet
	if *rulesPath != "" {
		set, err = config.Load(*rulesPath)
		if err != nil {
			return fmt.Errorf("invalid --rules: %w", err)
		}
		logger.Debug("loaded rules", zap.String("path", *rulesPath), zap.Int("rules", set.Len()))
	}

	cfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
		RelayPolicy:        policy,
		Logger:             logger,
	}

	fb, err := dialer.New(cfg, *fallback)
	if err != nil {
		return fmt.Errorf("invalid --fallback: %w", err)
	}
	d := dialer.NewRuleDialer(cfg, set, fb)

	switch cmd {
	case "route":
		return printRoute(stdout, d, arg)
	case "connect":
		return connect(ctx, d, arg, stdin, stdout)
	case "dns":
		ctx, cancel := context.WithTimeout(ctx, *dialTimeout+*negotiationTimeout)
		defer cancel()
		return resolve(ctx, d, *dnsServer, arg, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printRoute(w io.Writer, d *dialer.RuleDialer, host string) error {
	route := d.Route(host)
	if route.Rule == nil {
		_, err := fmt.Fprintf(w, "%s: %s\n", host, route)
		return err
	}

	patterns := route.Rule.HostPatterns()
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		names = append(names, p.String())
	}
	_, err := fmt.Fprintf(w, "%s: %s (%s)\n", host, route, strings.Join(names, ", "))
	return err
}

// connect pipes stdin to the connection and the connection to stdout. It
// returns once the remote side closes or ctx is canceled.
func connect(ctx context.Context, d dialer.Dialer, address string, stdin io.Reader, stdout io.Writer) error {
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// stdin may block indefinitely, so the upload is not waited for.
	uploaded := make(chan error, 1)
	go func() {
		_, err := io.Copy(conn, stdin)
		if cw, ok := conn.(interface{ CloseWrite() error }); ok && err == nil {
			_ = cw.CloseWrite()
		}
		uploaded <- err
	}()

	_, err = io.Copy(stdout, conn)
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if err == nil {
		select {
		case err = <-uploaded:
		default:
		}
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// resolve queries A and AAAA records for name concurrently, each over its
// own routed UDP connection to server.
func resolve(ctx context.Context, d dialer.Dialer, server, name string, w io.Writer) error {
	qtypes := []uint16{dns.TypeA, dns.TypeAAAA}
	answers := make([][]string, len(qtypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, qtype := range qtypes {
		g.Go(func() error {
			conn, err := d.DialContext(gctx, "udp", server)
			if err != nil {
				return err
			}
			defer conn.Close()

			msg, err := lookup.Query(gctx, conn, name, qtype)
			if errors.Is(err, lookup.ErrRcode) && msg.Rcode == dns.RcodeNameError {
				return fmt.Errorf("%s: no such host", name)
			}
			if err != nil {
				return err
			}
			for _, a := range lookup.Addresses(msg) {
				answers[i] = append(answers[i], a.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, addrs := range answers {
		for _, a := range addrs {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", name, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultFallback() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}

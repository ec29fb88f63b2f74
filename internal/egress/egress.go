// egress.go — Dial guard that keeps outgoing requests away from private networks.

// Package egress provides an http.Transport whose dialer refuses loopback,
// private and link-local destinations unless the host is explicitly allowed.
// The resolved public address is the one dialed, so a hostname cannot be
// re-resolved to a private address between the check and the connection.
package egress

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LookupTimeout bounds the DNS lookup made before each dial.
const LookupTimeout = 5 * time.Second

// ErrBlocked marks a dial refused by the guard.
var ErrBlocked = errors.New("egress blocked")

var privateRanges = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // link-local, cloud metadata
	"0.0.0.0/8",
	"100.64.0.0/10", // carrier-grade NAT
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// IsPrivateIP reports whether ip is loopback, unspecified or inside a private
// or link-local range.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() || ip.IsLoopback() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard decides which destinations may be dialed.
type Guard struct {
	allow    map[string]struct{}
	resolver Resolver
	dialer   net.Dialer
	log      *zap.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithAllowHosts exempts host or host:port values from the private check.
func WithAllowHosts(hosts ...string) Option {
	return func(g *Guard) {
		for _, h := range hosts {
			if h = strings.TrimSpace(h); h != "" {
				g.allow[strings.ToLower(h)] = struct{}{}
			}
		}
	}
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) Option {
	return func(g *Guard) { g.resolver = r }
}

// WithLogger sets the logger used for refused dials.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGuard returns a Guard with the given options applied.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		allow:    make(map[string]struct{}),
		resolver: net.DefaultResolver,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Guard) allowed(addr, host string) bool {
	if _, ok := g.allow[strings.ToLower(addr)]; ok {
		return true
	}
	_, ok := g.allow[strings.ToLower(host)]
	return ok
}

// ResolvePublic resolves host and returns its first public address.
func (g *Guard) ResolvePublic(ctx context.Context, host string) (net.IP, error) {
	name := strings.TrimSpace(host)
	if name == "" {
		return nil, errors.Wrap(ErrBlocked, "empty hostname")
	}
	if i := strings.IndexByte(name, '%'); i != -1 {
		name = name[:i]
	}
	if ip := net.ParseIP(name); ip != nil {
		if IsPrivateIP(ip) {
			return nil, errors.Wrapf(ErrBlocked, "%s is a private address", ip)
		}
		return ip, nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup %q", host)
	}
	for _, a := range addrs {
		if a.IP != nil && !IsPrivateIP(a.IP) {
			return a.IP, nil
		}
	}
	return nil, errors.Wrapf(ErrBlocked, "%q resolves only to private addresses", host)
}

// DialContext dials addr after checking it, pinning the connection to the
// address that passed the check.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrBlocked, "invalid address %s", addr)
	}
	if g.allowed(addr, host) {
		return g.dialer.DialContext(ctx, network, addr)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, LookupTimeout)
	defer cancel()
	ip, err := g.ResolvePublic(lookupCtx, host)
	if err != nil {
		g.log.Warn("refused dial", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// Transport returns a clone of http.DefaultTransport that dials through g.
func (g *Guard) Transport() *http.Transport {
	tr := &http.Transport{}
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		tr = base.Clone()
	}
	tr.Proxy = nil
	tr.DialContext = g.DialContext
	return tr
}

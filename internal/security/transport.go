// Package security guards the outbound push client against server-side
// request forgery.
//
// A Guard refuses to dial any address inside types.SSRFBlockedCIDRs, checks
// every resolved address of a host before connecting, and re-applies the same
// check to redirect targets. The push server URL is operator configured, so
// the guard mainly protects against a misconfigured or hijacked DNS record
// pointing the relay at the instance metadata service or the private network.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"revenuerelay/internal/types"
)

// DefaultDNSTimeout bounds a single host resolution.
const DefaultDNSTimeout = 500 * time.Millisecond

var (
	// ErrBlocked is returned when a host resolves into a blocked range.
	ErrBlocked = errors.New("ssrf: request to blocked IP range")

	// ErrDNSTimeout is returned when resolution exceeds the DNS timeout.
	ErrDNSTimeout = errors.New("ssrf: DNS resolution timeout")

	// ErrDNSFailed is returned when resolution fails or yields nothing.
	ErrDNSFailed = errors.New("ssrf: DNS resolution failed")

	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("ssrf: too many redirects")
)

// IsBlocked reports whether err was produced by the guard. Such failures
// are permanent for a given configuration.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrDNSTimeout) ||
		errors.Is(err, ErrDNSFailed) ||
		errors.Is(err, ErrTooManyRedirects)
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates outbound destinations against a CIDR blocklist.
type Guard struct {
	blocked    []netip.Prefix
	resolver   Resolver
	dnsTimeout time.Duration
	dialer     *net.Dialer
}

// NewGuard parses cidrs into a Guard. A nil resolver uses net.DefaultResolver.
func NewGuard(cidrs []string, resolver Resolver) (*Guard, error) {
	blocked := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("ssrf: failed to parse CIDR %q: %w", cidr, err)
		}
		blocked = append(blocked, p.Masked())
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Guard{
		blocked:    blocked,
		resolver:   resolver,
		dnsTimeout: DefaultDNSTimeout,
		dialer:     &net.Dialer{},
	}, nil
}

// NewDefaultGuard returns a Guard over types.SSRFBlockedCIDRs.
func NewDefaultGuard(resolver Resolver) (*Guard, error) {
	return NewGuard(types.SSRFBlockedCIDRs, resolver)
}

// Blocked reports whether addr falls inside a blocked range.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func (g *Guard) Blocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range g.blocked {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the addresses of host, failing if any of them is blocked.
// An IP literal is checked without a lookup.
func (g *Guard) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if g.Blocked(addr) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, addr)
		}
		return []netip.Addr{addr}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	ipAddrs, err := g.resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(ipAddrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}

	// Every address must pass, so a rebinding record mixing public and
	// private answers is refused outright.
	addrs := make([]netip.Addr, 0, len(ipAddrs))
	for _, ia := range ipAddrs {
		addr, ok := netip.AddrFromSlice(ia.IP)
		if !ok {
			return nil, fmt.Errorf("%w: host %q returned invalid address", ErrDNSFailed, host)
		}
		if g.Blocked(addr) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, addr.Unmap(), host)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// ValidateURL checks the host of rawURL. Used as a startup preflight for the
// configured push server.
func (g *Guard) ValidateURL(ctx context.Context, rawURL string) error {
	host := extractHost(rawURL)
	if host == "" {
		return fmt.Errorf("%w: unable to extract host from URL", ErrBlocked)
	}
	_, err := g.Resolve(ctx, host)
	return err
}

// DialContext resolves and validates addr before dialing the first address.
// It has the signature of http.Transport.DialContext.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}

	addrs, err := g.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].Unmap().String(), port))
}

// CheckRedirect returns an http.Client CheckRedirect func that limits the
// redirect chain to maxRedirects and validates every hop.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		if _, err := g.Resolve(req.Context(), host); err != nil {
			return fmt.Errorf("redirect: %w", err)
		}
		return nil
	}
}

// Transport returns an *http.Transport whose dialer is guarded.
func (g *Guard) Transport() *http.Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = nil
	base.DialContext = g.DialContext
	return base
}

// ClientOptions configures NewPushClient.
type ClientOptions struct {
	Timeout              time.Duration
	MaxRedirects         int
	BlockPrivateNetworks bool

	// Resolver overrides DNS resolution. Tests only.
	Resolver Resolver
}

// NewPushClient builds the HTTP client used to reach the push server. With
// BlockPrivateNetworks unset the client only enforces the timeout and the
// redirect limit.
func NewPushClient(opts ClientOptions) (*http.Client, error) {
	if !opts.BlockPrivateNetworks {
		return &http.Client{
			Timeout:       opts.Timeout,
			CheckRedirect: limitRedirects(opts.MaxRedirects),
		}, nil
	}

	guard, err := NewDefaultGuard(opts.Resolver)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport:     guard.Transport(),
		Timeout:       opts.Timeout,
		CheckRedirect: guard.CheckRedirect(opts.MaxRedirects),
	}, nil
}

func limitRedirects(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		return nil
	}
}

// extractHost parses the hostname from a URL string.
// Returns empty string if parsing fails.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

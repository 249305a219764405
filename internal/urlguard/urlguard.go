// Package urlguard validates outbound fetch targets so the scraper cannot be
// pointed at internal networks.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind identifies why a URL was refused.
type Kind string

const (
	KindInvalidURL      Kind = "url_invalid"
	KindSchemeForbidden Kind = "scheme_forbidden"
	KindLocalhost       Kind = "localhost_refused"
	KindNotAllowlisted  Kind = "not_allowlisted"
	KindDNSFailed       Kind = "dns_failed"
	KindNoRecords       Kind = "no_records"
	KindPrivateDest     Kind = "private_destination"
)

// Error is a refusal with a machine-readable kind.
type Error struct {
	Kind Kind
	Host string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// KindOf extracts the refusal kind from an error chain, or "" if the error
// did not come from the guard.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Resolver looks up the addresses for a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates outbound URLs against scheme, allowlist and resolved
// address policies.
type Guard struct {
	allowed  map[string]struct{}
	resolver Resolver
}

// New builds a Guard. An empty allowlist permits any public host.
func New(allowedHosts []string) *Guard {
	g := &Guard{resolver: net.DefaultResolver}
	if len(allowedHosts) > 0 {
		g.allowed = make(map[string]struct{}, len(allowedHosts))
		for _, h := range allowedHosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				g.allowed[h] = struct{}{}
			}
		}
	}
	return g
}

// WithResolver overrides the DNS resolver. Used by tests.
func (g *Guard) WithResolver(r Resolver) *Guard {
	g.resolver = r
	return g
}

// Validate checks raw against the full policy: parse, scheme, localhost,
// allowlist, DNS resolution, and private-address classification of every
// resolved record. DNS can change between calls, so callers re-validate
// before every fetch.
func (g *Guard) Validate(ctx context.Context, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &Error{Kind: KindInvalidURL, Msg: err.Error()}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return &Error{Kind: KindInvalidURL, Msg: "missing host"}
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return &Error{Kind: KindSchemeForbidden, Host: host, Msg: fmt.Sprintf("scheme %q not allowed", u.Scheme)}
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return &Error{Kind: KindLocalhost, Host: host, Msg: "localhost is not a valid target"}
	}

	if g.allowed != nil {
		if _, ok := g.allowed[host]; !ok {
			return &Error{Kind: KindNotAllowlisted, Host: host, Msg: fmt.Sprintf("host %q is not on the fetch allowlist", host)}
		}
	}

	// Literal addresses need no lookup.
	if ip := net.ParseIP(host); ip != nil {
		if isForbiddenIP(ip) {
			return &Error{Kind: KindPrivateDest, Host: host, Msg: fmt.Sprintf("address %s is not publicly routable", ip)}
		}
		return nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return &Error{Kind: KindDNSFailed, Host: host, Msg: fmt.Sprintf("resolving %q: %v", host, err)}
	}
	if len(addrs) == 0 {
		return &Error{Kind: KindNoRecords, Host: host, Msg: fmt.Sprintf("host %q has no address records", host)}
	}

	for _, addr := range addrs {
		if isForbiddenIP(addr.IP) {
			return &Error{Kind: KindPrivateDest, Host: host, Msg: fmt.Sprintf("host %q resolves to %s", host, addr.IP)}
		}
	}

	return nil
}

// isForbiddenIP reports whether ip falls in a range the guard refuses:
// loopback, unspecified, link-local, RFC1918 or ULA.
func isForbiddenIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsPrivate()
}

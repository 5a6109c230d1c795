package identity

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
)

var (
	// ErrNoAddress is returned by strategies that had nothing to report.
	ErrNoAddress = errors.New("identity: no address")

	// ErrPlaceholder marks an address that carries no information.
	ErrPlaceholder = errors.New("identity: placeholder address")

	// ErrInvalidAddress is returned when an override is not an IP literal.
	ErrInvalidAddress = errors.New("identity: invalid address")
)

// Session is the explicit per-client context a resolve runs under.
type Session struct {
	ID string
}

// Request carries everything a strategy may inspect. Strategies must not
// keep references to it.
type Request struct {
	Session         Session
	Header          http.Header
	RemoteAddr      string
	BrowserReported string
}

// Strategy produces a candidate address for a request. It is queried under a
// deadline and any error means "nothing", never a failed resolve.
type Strategy interface {
	Source() domain.IdentitySource
	Lookup(ctx context.Context, req Request) (string, error)
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc struct {
	From domain.IdentitySource
	Fn   func(ctx context.Context, req Request) (string, error)
}

func (f StrategyFunc) Source() domain.IdentitySource { return f.From }

func (f StrategyFunc) Lookup(ctx context.Context, req Request) (string, error) {
	return f.Fn(ctx, req)
}

var placeholders = map[string]struct{}{
	"":                 {},
	"localhost":        {},
	"unknown":          {},
	"detection_failed": {},
	"null":             {},
}

// Normalize validates a candidate address and returns its canonical form.
// Ports, IPv6 brackets and zones are stripped. Loopback, unspecified and the
// well-known placeholder strings are rejected with ErrPlaceholder.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return "", ErrPlaceholder
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return "", ErrPlaceholder
		}
		addr = ap.Addr()
	}

	addr = addr.Unmap().WithZone("")
	if addr.IsLoopback() || addr.IsUnspecified() {
		return "", ErrPlaceholder
	}
	return addr.String(), nil
}

// priority lists sources highest first. Synthetic is produced by the
// resolver itself and cannot be registered.
var priority = []domain.IdentitySource{
	domain.SourceOverride,
	domain.SourceProxyHeader,
	domain.SourcePeerAddress,
	domain.SourceBrowserReported,
	domain.SourceExternalLookup,
}

func knownSource(s domain.IdentitySource) bool {
	for _, p := range priority {
		if p == s {
			return true
		}
	}
	return false
}

// Package lookup holds the strategies the service registers on the identity
// resolver. The resolver itself never talks to the network.
package lookup

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
)

// ProxyHeader reads the client address from headers set by a trusted reverse
// proxy. Headers are tried in order and the first usable value wins. Only
// list headers that the proxy in front of the service overwrites; with none
// listed the strategy never answers.
type ProxyHeader struct {
	Headers []string
}

func (p ProxyHeader) Source() domain.IdentitySource { return domain.SourceProxyHeader }

func (p ProxyHeader) Lookup(_ context.Context, req identity.Request) (string, error) {
	for _, name := range p.Headers {
		value := req.Header.Get(name)
		if value == "" {
			continue
		}

		var candidate string
		if http.CanonicalHeaderKey(name) == "Forwarded" {
			candidate = forwardedFor(value)
		} else {
			// X-Forwarded-For style list: the left-most entry is the client
			candidate, _, _ = strings.Cut(value, ",")
		}

		if addr, err := identity.Normalize(stripBrackets(candidate)); err == nil {
			return addr, nil
		}
	}
	return "", identity.ErrNoAddress
}

// forwardedFor extracts the for= parameter of the first RFC 7239 element.
func forwardedFor(value string) string {
	first, _, _ := strings.Cut(value, ",")
	for _, pair := range strings.Split(first, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.EqualFold(k, "for") {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

func stripBrackets(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}

// PeerAddress reports the address of the directly connected peer. Behind a
// proxy this is the proxy itself (loopback is rejected, leaving lower sources
// to answer), hence medium confidence.
type PeerAddress struct{}

func (PeerAddress) Source() domain.IdentitySource { return domain.SourcePeerAddress }

func (PeerAddress) Lookup(_ context.Context, req identity.Request) (string, error) {
	if req.RemoteAddr == "" {
		return "", identity.ErrNoAddress
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return host, nil
}

// BrowserReported returns the address the requester's own environment
// reported, if any.
type BrowserReported struct{}

func (BrowserReported) Source() domain.IdentitySource { return domain.SourceBrowserReported }

func (BrowserReported) Lookup(_ context.Context, req identity.Request) (string, error) {
	if strings.TrimSpace(req.BrowserReported) == "" {
		return "", identity.ErrNoAddress
	}
	return req.BrowserReported, nil
}

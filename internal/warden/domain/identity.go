package domain

import "time"

// IdentitySource names the strategy that produced a ClientIdentity.
type IdentitySource string

const (
	SourceOverride        IdentitySource = "override"
	SourceProxyHeader     IdentitySource = "proxy_header"
	SourcePeerAddress     IdentitySource = "peer_address"
	SourceBrowserReported IdentitySource = "browser_reported"
	SourceExternalLookup  IdentitySource = "external_lookup"
	SourceSynthetic       IdentitySource = "synthetic"
)

// Confidence ranks how much a source can be trusted. It is used for logging
// and audit only, never for authorization.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceOperator
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	case ConfidenceOperator:
		return "operator"
	default:
		return "none"
	}
}

// ConfidenceOf returns the fixed confidence level of a source.
func ConfidenceOf(s IdentitySource) Confidence {
	switch s {
	case SourceOverride:
		return ConfidenceOperator
	case SourceProxyHeader:
		return ConfidenceHigh
	case SourcePeerAddress, SourceBrowserReported:
		return ConfidenceMedium
	case SourceExternalLookup:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// ClientIdentity is a best-effort descriptor of a requester. A synthetic
// identity is address-shaped for compatibility only and is not a network
// address.
type ClientIdentity struct {
	Address    string
	Source     IdentitySource
	Confidence Confidence
	ResolvedAt time.Time
}

// IsZero reports whether no identity has been resolved.
func (c ClientIdentity) IsZero() bool { return c.Address == "" }

// IsSynthetic reports whether the address was generated locally.
func (c ClientIdentity) IsSynthetic() bool { return c.Source == SourceSynthetic }

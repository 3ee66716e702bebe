package cache

import "time"

// TTLPair is the (L1, L2) time-to-live for one cache namespace.
type TTLPair struct {
	L1 time.Duration
	L2 time.Duration
}

// Namespace TTLs named in spec.md §4.1. Values are fixed at construction —
// a Fabric never re-derives them at call time.
const (
	NamespaceSignals       = "signals"
	NamespaceMoat          = "moat"
	NamespaceSector        = "sector"
	NamespaceETFHoldings   = "etf_holdings"
	NamespaceETFSector     = "etf_sector"
	NamespaceFXShort       = "fx_short"
	NamespaceFXLong        = "fx_long"
	NamespaceFearGreed     = "fear_greed"
	NamespaceBeta          = "beta"
	NamespaceEarnings      = "earnings"
	NamespaceDividend      = "dividend"
	NamespaceFiling        = "filing"
	NamespaceFilingHolding = "filing_holding"
)

// DefaultTTLPolicy returns the namespace -> (L1, L2) TTL table from spec.md §4.1.
// Namespaces absent from this table fall back to DefaultTTL (documented there).
func DefaultTTLPolicy() map[string]TTLPair {
	return map[string]TTLPair{
		NamespaceSignals:       {L1: 5 * time.Minute, L2: time.Hour},
		NamespaceMoat:          {L1: time.Hour, L2: 24 * time.Hour},
		NamespaceSector:        {L1: 7 * 24 * time.Hour, L2: 30 * 24 * time.Hour},
		NamespaceETFHoldings:   {L1: time.Hour, L2: 24 * time.Hour},
		NamespaceETFSector:     {L1: time.Hour, L2: 24 * time.Hour},
		NamespaceFXShort:       {L1: 2 * time.Hour, L2: 4 * time.Hour},
		NamespaceFXLong:        {L1: 6 * time.Hour, L2: 24 * time.Hour},
		NamespaceFearGreed:     {L1: 15 * time.Minute, L2: time.Hour},
		NamespaceBeta:          {L1: 24 * time.Hour, L2: 7 * 24 * time.Hour},
		NamespaceEarnings:      {L1: 24 * time.Hour, L2: 45 * 24 * time.Hour},
		NamespaceDividend:      {L1: 24 * time.Hour, L2: 7 * 24 * time.Hour},
		NamespaceFiling:        {L1: time.Hour, L2: 30 * 24 * time.Hour},
		NamespaceFilingHolding: {L1: time.Hour, L2: 30 * 24 * time.Hour},
	}
}

// DefaultTTL is used for any namespace not present in the policy table.
var DefaultTTL = TTLPair{L1: 5 * time.Minute, L2: time.Hour}

func (c *Fabric) ttlFor(namespace string) TTLPair {
	if pair, ok := c.ttlPolicy[namespace]; ok {
		return pair
	}
	return DefaultTTL
}

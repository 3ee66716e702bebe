// Package resonance computes the overlap between institutional-investor
// filings (the Filing / Guru holding model owned by the Provider Router
// and its Repository) and the user's own ticker universe. It answers
// "which gurus hold what I hold (or watch)" without re-querying per
// investor — every entry point here bulk-loads once and joins in memory.
package resonance

// holdingChangeThresholdPct is the minimum absolute share-count change,
// in percent, required to classify a position as INCREASED/DECREASED
// rather than UNCHANGED. Not specified by any retrieved source; chosen
// as a round, conservative default, same kind of implementer's choice
// as the fear-and-greed composite weighting.
const holdingChangeThresholdPct = 5.0

// ClassifyHoldingChange determines how an investor's position in one
// ticker changed between two consecutive filings. previousShares is nil
// when the ticker was absent from the prior filing.
func ClassifyHoldingChange(currentShares float64, previousShares *float64) string {
	if previousShares == nil || *previousShares == 0 {
		if currentShares > 0 {
			return "NEW_POSITION"
		}
		return "UNCHANGED"
	}
	if currentShares == 0 {
		return "SOLD_OUT"
	}

	change := ComputeChangePct(currentShares, *previousShares)
	if change == nil {
		return "UNCHANGED"
	}
	switch {
	case *change >= holdingChangeThresholdPct:
		return "INCREASED"
	case *change <= -holdingChangeThresholdPct:
		return "DECREASED"
	default:
		return "UNCHANGED"
	}
}

// ComputeChangePct returns the percentage change from previous to
// current, or nil when previous is zero (undefined percentage change).
func ComputeChangePct(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	pct := (current - previous) / previous * 100
	return &pct
}

// ComputeHoldingWeight returns a single holding's percentage weight of
// the filing's total disclosed value; 0 when totalValue is zero.
func ComputeHoldingWeight(holdingValue, totalValue float64) float64 {
	if totalValue == 0 {
		return 0
	}
	return holdingValue / totalValue * 100
}

// ComputeResonanceMatches returns the tickers present in both an
// investor's current holdings and the user's own ticker universe.
func ComputeResonanceMatches(investorTickers, userTickers map[string]bool) []string {
	var matches []string
	for t := range investorTickers {
		if userTickers[t] {
			matches = append(matches, t)
		}
	}
	return matches
}

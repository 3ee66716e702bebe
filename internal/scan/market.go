package scan

import "github.com/aristath/marketcore/internal/domain"

// ClassifyMarketStatus maps the fraction of trend-setter tickers trading
// below their 60-day moving average to a breadth bucket.
func ClassifyMarketStatus(belowMA60Pct float64) domain.MarketStatus {
	switch {
	case belowMA60Pct >= 0.80:
		return domain.StatusStrongBearish
	case belowMA60Pct >= 0.60:
		return domain.StatusBearish
	case belowMA60Pct >= 0.40:
		return domain.StatusNeutral
	case belowMA60Pct >= 0.20:
		return domain.StatusBullish
	default:
		return domain.StatusStrongBullish
	}
}

// MarketBreadth is the market-sentiment layer's output: the fraction of
// trend-setter tickers trading below their 60MA and the resulting status.
type MarketBreadth struct {
	BelowMA60Pct float64
	Status       domain.MarketStatus
	Details      string
}

// TrendSetterQuote is the minimal per-ticker input the breadth
// calculation needs.
type TrendSetterQuote struct {
	Ticker    string
	LastClose float64
	MA60      *float64
}

// ComputeMarketBreadth implements the market-sentiment layer: among
// non-ETF trend-setter tickers with a resolvable MA60, what fraction
// closed below it.
func ComputeMarketBreadth(quotes []TrendSetterQuote) MarketBreadth {
	var total, below int
	for _, q := range quotes {
		if q.MA60 == nil {
			continue
		}
		total++
		if q.LastClose < *q.MA60 {
			below++
		}
	}

	if total == 0 {
		return MarketBreadth{Status: domain.StatusNeutral, Details: "no trend-setter tickers with resolvable 60MA"}
	}

	pct := float64(below) / float64(total)
	return MarketBreadth{
		BelowMA60Pct: pct,
		Status:       ClassifyMarketStatus(pct),
	}
}

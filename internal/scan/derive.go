package scan

import (
	"time"

	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/pkg/formulas"
)

// biasSampleWindow bounds how much trailing bias history feeds
// BiasPercentile, matching the "rolling bias distribution sample" the
// signal record documents.
const biasSampleWindow = 252

// DeriveSignal turns a raw daily price series into a technical signal
// record, matching prewarm.SignalDeriver's shape so the Batch Prewarmer
// can call it without importing this package's decision logic.
// Returns false when there isn't enough history to compute anything
// meaningful (the caller is expected to have already filtered on a
// minimum row count, but this recomputes the guard defensively).
func DeriveSignal(ticker string, series []domain.PricePoint) (domain.Signal, bool) {
	if len(series) < 60 {
		return domain.Signal{}, false
	}

	closes := make([]float64, len(series))
	volumes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Close
		volumes[i] = p.Volume
	}

	last := closes[len(closes)-1]
	var prevClose *float64
	if len(closes) >= 2 {
		p := closes[len(closes)-2]
		prevClose = &p
	}

	var changePct *float64
	if prevClose != nil && *prevClose != 0 {
		c := (last - *prevClose) / *prevClose * 100
		changePct = &c
	}

	rsi := formulas.RSI(closes, 14)
	ma60 := formulas.SMA(closes, 60)
	ma200 := formulas.SMA(closes, 200)
	bias := formulas.BiasPct(last, ma200)
	volumeRatio := formulas.VolumeRatio(volumes)

	var biasSample []float64
	if ma200 != nil {
		start := 0
		if len(closes) > biasSampleWindow {
			start = len(closes) - biasSampleWindow
		}
		for i := start; i < len(closes); i++ {
			if b := formulas.BiasPct(closes[i], ma200); b != nil {
				biasSample = append(biasSample, *b)
			}
		}
	}

	return domain.Signal{
		Ticker:      ticker,
		LastClose:   &last,
		PrevClose:   prevClose,
		ChangePct:   changePct,
		RSI14:       rsi,
		MA60:        ma60,
		MA200:       ma200,
		BiasPct:     bias,
		VolumeRatio: volumeRatio,
		BiasSample:  biasSample,
		ComputedAt:  time.Now(),
	}, true
}

package scan

import "github.com/aristath/marketcore/internal/domain"

// rogueWaveVolumeRatio and rogueWaveBiasAbs are the thresholds a ticker's
// volume ratio and same-day bias must both cross to flag a rogue wave.
const (
	rogueWaveVolumeRatio = 3.0
	rogueWaveBiasAbs     = 15.0
)

// DetermineScanSignal is the pure, deterministic decision function the
// per-ticker evaluation layer applies. Inputs are all optional except
// category and moatStatus: a nil pointer means "insufficient history",
// which the function treats conservatively (falls through toward NORMAL).
func DetermineScanSignal(
	category domain.Category,
	moatStatus domain.MoatStatus,
	bias *float64,
	rsi *float64,
	biasPercentile *float64,
	volumeRatio *float64,
) domain.ScanSignal {
	if category == domain.CategoryMoat && moatStatus == domain.MoatDeteriorating {
		return domain.SignalThesisBroken
	}

	switch {
	case bias != nil && rsi != nil && biasPercentile != nil &&
		*bias <= -20 && *rsi <= 30 && *biasPercentile <= 10:
		return domain.SignalDeepValue

	case rsi != nil && biasPercentile != nil &&
		*rsi <= 30 && *biasPercentile <= 25:
		return domain.SignalOversold

	case bias != nil && *bias <= -10 &&
		((biasPercentile != nil && *biasPercentile <= 35) || (volumeRatio != nil && *volumeRatio >= 2)):
		return domain.SignalContrarianBuy

	case bias != nil && rsi != nil &&
		*bias <= -5 && *rsi <= 45:
		return domain.SignalApproachingBuy

	case rsi != nil && bias != nil &&
		*rsi >= 75 && *bias >= 20:
		return domain.SignalOverheated

	case (bias != nil && *bias >= 15) || (rsi != nil && *rsi >= 70):
		return domain.SignalCautionHigh

	case moatStatus == domain.MoatDeteriorating:
		return domain.SignalWeakening
	}

	return domain.SignalNormal
}

// IsRogueWave flags an abnormal single-day price spike accompanied by
// unusually high volume: a secondary signal layered on top of
// DetermineScanSignal's primary classification.
func IsRogueWave(dailyChangePct *float64, volumeRatio *float64) bool {
	if dailyChangePct == nil || volumeRatio == nil {
		return false
	}
	abs := *dailyChangePct
	if abs < 0 {
		abs = -abs
	}
	return abs >= rogueWaveBiasAbs && *volumeRatio >= rogueWaveVolumeRatio
}

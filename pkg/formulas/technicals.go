// Package formulas holds the pure, deterministic math the scan pipeline and
// signal derivation depend on: RSI, moving averages, and bias-percentile
// ranking. None of it touches I/O, which is what keeps it trivially testable
// and safe to call from the bounded per-ticker worker pool.
package formulas

import (
	"sort"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// RSI returns the RSI(length) value from closes, or nil when there isn't
// enough history (length+1 closes minimum).
func RSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}
	values := talib.Rsi(closes, length)
	if len(values) == 0 || isNaN(values[len(values)-1]) {
		return nil
	}
	result := values[len(values)-1]
	return &result
}

// SMA returns the simple moving average over the trailing `length` closes,
// or nil when there isn't enough history.
func SMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}
	values := talib.Sma(closes, length)
	if len(values) == 0 || isNaN(values[len(values)-1]) {
		return nil
	}
	result := values[len(values)-1]
	return &result
}

// BiasPct returns the percent distance of price above/below ma:
// (price - ma) / ma * 100. Returns nil if ma is nil or zero.
func BiasPct(price float64, ma *float64) *float64 {
	if ma == nil || *ma == 0 {
		return nil
	}
	bias := (price - *ma) / *ma * 100
	return &bias
}

// VolumeRatio is last-day volume divided by the mean of the trailing
// window (excluding the last day). Returns nil when the window is empty.
func VolumeRatio(volumes []float64) *float64 {
	if len(volumes) < 2 {
		return nil
	}
	last := volumes[len(volumes)-1]
	window := volumes[:len(volumes)-1]
	mean := stat.Mean(window, nil)
	if mean == 0 {
		return nil
	}
	ratio := last / mean
	return &ratio
}

// BiasPercentile ranks the current bias value against a rolling historical
// sample of bias values, returning its percentile in [0, 100]. Returns nil
// for an empty sample.
func BiasPercentile(current float64, sample []float64) *float64 {
	if len(sample) == 0 {
		return nil
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	below := sort.SearchFloat64s(sorted, current)
	pct := float64(below) / float64(len(sorted)) * 100
	return &pct
}

func isNaN(f float64) bool { return f != f }

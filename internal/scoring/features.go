// Package scoring ranks symbols by momentum, volume, volatility, foreign
// interest and recent price change over a lookback window.
package scoring

import (
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/pkg/formulas"
)

// Features are the raw, unnormalized factors of one symbol.
type Features struct {
	Momentum        float64 `json:"momentum"`
	VolumeStrength  float64 `json:"volume_strength"`
	Volatility      float64 `json:"volatility"`
	ForeignInterest float64 `json:"foreign_interest"`
	RecentChange    float64 `json:"recent_change"`
}

// ComputeFeatures derives the features from daily candles and daily price
// statistics, both in ascending date order.
func ComputeFeatures(bars []ssi.Bar, prices []ssi.DailyPrice) Features {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return Features{
		Momentum:        Momentum(closes),
		VolumeStrength:  VolumeStrength(prices),
		Volatility:      Volatility(closes),
		ForeignInterest: ForeignInterest(prices),
		RecentChange:    RecentChange(prices),
	}
}

// Momentum is the relative change from the first to the last close.
func Momentum(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	return formulas.RelativeChange(closes[0], closes[len(closes)-1])
}

// VolumeStrength is the last traded volume over the mean traded volume.
func VolumeStrength(prices []ssi.DailyPrice) float64 {
	if len(prices) == 0 {
		return 0
	}
	volumes := make([]float64, len(prices))
	for i, p := range prices {
		volumes[i] = p.TotalTradedVol
	}
	avg := formulas.Mean(volumes)
	if avg == 0 {
		return 0
	}
	return volumes[len(volumes)-1] / avg
}

// Volatility is the population standard deviation of day-over-day close changes.
func Volatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	return formulas.PopStdDev(formulas.Diff(closes))
}

// ForeignInterest is total foreign buy volume over total traded volume.
func ForeignInterest(prices []ssi.DailyPrice) float64 {
	var foreign, total float64
	for _, p := range prices {
		foreign += p.ForeignBuyVol
		total += p.TotalTradedVol
	}
	if total == 0 {
		return 0
	}
	return foreign / total
}

// RecentChange is the change from the first open to the last close.
func RecentChange(prices []ssi.DailyPrice) float64 {
	if len(prices) == 0 {
		return 0
	}
	return formulas.RelativeChange(prices[0].OpenPrice, prices[len(prices)-1].ClosePrice)
}

package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index.
//
//	RSI = 100 - (100 / (1 + RS)), RS = average gain / average loss over N periods
//
// Returns nil if there is insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length+1 {
		return nil
	}
	return last(talib.Rsi(closes, length))
}

// CalculateSMA returns the latest simple moving average over length periods,
// or nil if there is insufficient data.
func CalculateSMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}
	return last(talib.Sma(closes, length))
}

func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

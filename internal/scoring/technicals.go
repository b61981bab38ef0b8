package scoring

import (
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/pkg/formulas"
)

// Indicator periods
const (
	RSIPeriod = 14
	SMAPeriod = 20
)

// Technicals is an indicator snapshot for one symbol. Indicators are nil
// when the window is too short.
type Technicals struct {
	Symbol     string   `json:"symbol"`
	Bars       int      `json:"bars"`
	LastClose  float64  `json:"last_close"`
	RSI14      *float64 `json:"rsi_14"`
	SMA20      *float64 `json:"sma_20"`
	AboveSMA20 *bool    `json:"above_sma_20,omitempty"`
	Momentum   float64  `json:"momentum"`
	Volatility float64  `json:"volatility"`
}

// ComputeTechnicals builds the snapshot from ascending daily candles.
func ComputeTechnicals(symbol string, bars []ssi.Bar) Technicals {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	t := Technicals{
		Symbol:     symbol,
		Bars:       len(bars),
		RSI14:      formulas.CalculateRSI(closes, RSIPeriod),
		SMA20:      formulas.CalculateSMA(closes, SMAPeriod),
		Momentum:   Momentum(closes),
		Volatility: Volatility(closes),
	}
	if len(closes) > 0 {
		t.LastClose = closes[len(closes)-1]
	}
	if t.SMA20 != nil && len(closes) > 0 {
		above := t.LastClose > *t.SMA20
		t.AboveSMA20 = &above
	}
	return t
}

// Package portfolio keeps investment amounts per symbol and their weights.
package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/aristath/vnmarket/internal/clients/prediction"
)

// WeightTolerance is the largest weight change treated as no change.
const WeightTolerance = 1e-4

// Holding is one position. Weight is Investment as a fraction of the total.
type Holding struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Investment float64 `json:"investment" validate:"gte=0"`
	Weight     float64 `json:"weight"`
}

// Portfolio is an ordered list of holdings.
type Portfolio struct {
	Holdings []Holding `json:"holdings" validate:"dive"`
}

// New creates a portfolio and computes weights.
func New(holdings ...Holding) *Portfolio {
	p := &Portfolio{Holdings: append([]Holding(nil), holdings...)}
	p.RecomputeWeights()
	return p
}

// Total returns the sum of investments.
func (p *Portfolio) Total() float64 {
	var total float64
	for _, h := range p.Holdings {
		total += h.Investment
	}
	return total
}

// RecomputeWeights sets weight = investment / total for each holding. With a
// zero total nothing changes. When every weight is already within
// WeightTolerance of its target nothing is written and false is returned, so
// repeated calls settle instead of looping on rounding noise.
func (p *Portfolio) RecomputeWeights() bool {
	total := p.Total()
	if total == 0 {
		return false
	}

	changed := false
	for _, h := range p.Holdings {
		if math.Abs(h.Weight-h.Investment/total) > WeightTolerance {
			changed = true
			break
		}
	}
	if !changed {
		return false
	}

	for i := range p.Holdings {
		p.Holdings[i].Weight = p.Holdings[i].Investment / total
	}
	return true
}

// Add appends a holding, or adds to the investment of an existing symbol.
func (p *Portfolio) Add(symbol string, investment float64) error {
	symbol = normalize(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if investment < 0 {
		return fmt.Errorf("investment must not be negative")
	}

	if i := p.index(symbol); i >= 0 {
		p.Holdings[i].Investment += investment
	} else {
		p.Holdings = append(p.Holdings, Holding{Symbol: symbol, Investment: investment})
	}
	p.RecomputeWeights()
	return nil
}

// Remove deletes a holding. It reports whether the symbol was held.
func (p *Portfolio) Remove(symbol string) bool {
	i := p.index(normalize(symbol))
	if i < 0 {
		return false
	}
	p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
	p.RecomputeWeights()
	return true
}

// SetInvestment replaces the investment of a held symbol.
func (p *Portfolio) SetInvestment(symbol string, investment float64) error {
	if investment < 0 {
		return fmt.Errorf("investment must not be negative")
	}
	i := p.index(normalize(symbol))
	if i < 0 {
		return fmt.Errorf("symbol %s not in portfolio", symbol)
	}
	p.Holdings[i].Investment = investment
	p.RecomputeWeights()
	return nil
}

// Symbols returns the held symbols in order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Symbol
	}
	return out
}

// FactorInput builds the factor-service request for this portfolio. A
// non-positive investment uses the portfolio total, then the service default.
func (p *Portfolio) FactorInput(investment float64) prediction.PortfolioInput {
	weights := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		weights[i] = h.Weight
	}
	if investment <= 0 {
		investment = p.Total()
	}
	if investment <= 0 {
		investment = prediction.DefaultInvestment
	}
	return prediction.PortfolioInput{
		Tickers:    p.Symbols(),
		Weights:    weights,
		Investment: investment,
	}
}

// FormatWeight renders a weight as a percentage with two decimals.
func FormatWeight(w float64) string {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		w = 0
	}
	return fmt.Sprintf("%.2f%%", w*100)
}

// FormattedWeights renders each holding's weight by symbol. A portfolio with
// nothing invested shows every weight as 0.00%.
func (p *Portfolio) FormattedWeights() map[string]string {
	zero := p.Total() == 0
	out := make(map[string]string, len(p.Holdings))
	for _, h := range p.Holdings {
		if zero {
			out[h.Symbol] = FormatWeight(0)
			continue
		}
		out[h.Symbol] = FormatWeight(h.Weight)
	}
	return out
}

func (p *Portfolio) index(symbol string) int {
	for i, h := range p.Holdings {
		if h.Symbol == symbol {
			return i
		}
	}
	return -1
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

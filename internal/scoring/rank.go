package scoring

import (
	"sort"

	"github.com/aristath/vnmarket/pkg/formulas"
)

// Weights are the contribution of each normalized feature to the final score.
type Weights struct {
	Momentum        float64 `json:"momentum"`
	VolumeStrength  float64 `json:"volume_strength"`
	Volatility      float64 `json:"volatility"`
	ForeignInterest float64 `json:"foreign_interest"`
	RecentChange    float64 `json:"recent_change"`
}

// DefaultWeights favours momentum and foreign buying.
func DefaultWeights() Weights {
	return Weights{
		Momentum:        0.30,
		VolumeStrength:  0.20,
		Volatility:      0.15,
		ForeignInterest: 0.25,
		RecentChange:    0.10,
	}
}

// SymbolFeatures pairs a symbol with its raw features.
type SymbolFeatures struct {
	Symbol string
	Features
}

// Ranking is a scored symbol. Features hold the raw values.
type Ranking struct {
	Symbol     string  `json:"symbol"`
	FinalScore float64 `json:"final_score"`
	Features
}

// Rank normalizes every feature across the set, combines them with w and
// returns the rankings sorted by descending score. Ties keep input order.
func Rank(set []SymbolFeatures, w Weights) []Ranking {
	n := len(set)
	if n == 0 {
		return []Ranking{}
	}

	column := func(pick func(Features) float64) []float64 {
		values := make([]float64, n)
		for i, s := range set {
			values[i] = pick(s.Features)
		}
		return formulas.MinMaxNormalize(values)
	}
	momentum := column(func(f Features) float64 { return f.Momentum })
	volume := column(func(f Features) float64 { return f.VolumeStrength })
	volatility := column(func(f Features) float64 { return f.Volatility })
	foreign := column(func(f Features) float64 { return f.ForeignInterest })
	recent := column(func(f Features) float64 { return f.RecentChange })

	rankings := make([]Ranking, n)
	for i, s := range set {
		rankings[i] = Ranking{
			Symbol: s.Symbol,
			FinalScore: momentum[i]*w.Momentum +
				volume[i]*w.VolumeStrength +
				volatility[i]*w.Volatility +
				foreign[i]*w.ForeignInterest +
				recent[i]*w.RecentChange,
			Features: s.Features,
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].FinalScore > rankings[j].FinalScore
	})
	return rankings
}

// Top returns at most n leading rankings.
func Top(rankings []Ranking, n int) []Ranking {
	if n < 0 || n >= len(rankings) {
		return rankings
	}
	return rankings[:n]
}

// DropDegenerate removes rankings where any value is exactly 0 or 1, which
// marks symbols with missing data or a single observation.
func DropDegenerate(rankings []Ranking) []Ranking {
	out := make([]Ranking, 0, len(rankings))
	for _, r := range rankings {
		if degenerate(r.FinalScore, r.Momentum, r.VolumeStrength, r.Volatility, r.ForeignInterest, r.RecentChange) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func degenerate(values ...float64) bool {
	for _, v := range values {
		if v == 0 || v == 1 {
			return true
		}
	}
	return false
}

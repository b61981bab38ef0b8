package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Columns is the header of ranking tables.
var Columns = []string{"symbol", "final_score", "momentum", "volume_strength", "volatility", "foreign_interest", "recent_change"}

// WriteCSV writes rankings with a header row.
func WriteCSV(w io.Writer, rankings []Ranking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rankings {
		record := []string{
			r.Symbol,
			formatFloat(r.FinalScore),
			formatFloat(r.Momentum),
			formatFloat(r.VolumeStrength),
			formatFloat(r.Volatility),
			formatFloat(r.ForeignInterest),
			formatFloat(r.RecentChange),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", r.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadRanking reads a ranking table. Columns are matched by header name in
// any order; symbol and final_score are required, missing features read as 0.
// Rows keep file order.
func LoadRanking(r io.Reader) ([]Ranking, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Ranking{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"symbol", "final_score"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("ranking table has no %q column", required)
		}
	}

	rankings := []Ranking{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) (float64, error) {
			i, ok := index[name]
			if !ok || i >= len(record) || strings.TrimSpace(record[i]) == "" {
				return 0, nil
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid %s %q", line, name, record[i])
			}
			return v, nil
		}

		symbol := strings.ToUpper(strings.TrimSpace(record[index["symbol"]]))
		if symbol == "" {
			continue
		}
		ranking := Ranking{Symbol: symbol}
		targets := map[string]*float64{
			"final_score":      &ranking.FinalScore,
			"momentum":         &ranking.Momentum,
			"volume_strength":  &ranking.VolumeStrength,
			"volatility":       &ranking.Volatility,
			"foreign_interest": &ranking.ForeignInterest,
			"recent_change":    &ranking.RecentChange,
		}
		for name, target := range targets {
			v, err := field(name)
			if err != nil {
				return nil, err
			}
			*target = v
		}
		rankings = append(rankings, ranking)
	}
	return rankings, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/scoring"
	"github.com/aristath/vnmarket/pkg/logger"
)

// Export file names
const (
	FileAllStocks     = "all_stocks.csv"
	FileTopStocks     = "top_stocks.csv"
	FileAllStocksDrop = "all_stock_drop.csv"
	FileTopDropped    = "top_20_stock.csv"
)

// Exporter writes the ranking tables of a snapshot to a sink.
type Exporter struct {
	sink Sink
	topN int
	log  zerolog.Logger
}

// NewExporter creates an exporter. topN bounds the filtered top table.
func NewExporter(sink Sink, topN int, log zerolog.Logger) *Exporter {
	if topN <= 0 {
		topN = scoring.DefaultTopN
	}
	return &Exporter{
		sink: sink,
		topN: topN,
		log:  logger.Component(log, "exporter").With().Str("sink", sink.Kind()).Logger(),
	}
}

// Export writes four tables: every ranking, the top list, rankings without
// degenerate rows, and the top of that filtered list. It returns the stored
// locations keyed by file name.
func (e *Exporter) Export(ctx context.Context, snapshot *scoring.Snapshot) (map[string]string, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("no ranking to export")
	}

	dropped := scoring.DropDegenerate(snapshot.All)
	tables := []struct {
		name     string
		rankings []scoring.Ranking
	}{
		{FileAllStocks, snapshot.All},
		{FileTopStocks, snapshot.Top},
		{FileAllStocksDrop, dropped},
		{FileTopDropped, scoring.Top(dropped, e.topN)},
	}

	locations := make(map[string]string, len(tables))
	for _, table := range tables {
		var buf bytes.Buffer
		if err := scoring.WriteCSV(&buf, table.rankings); err != nil {
			return locations, fmt.Errorf("failed to encode %s: %w", table.name, err)
		}
		location, err := e.sink.Put(ctx, table.name, buf.Bytes())
		if err != nil {
			return locations, err
		}
		locations[table.name] = location
		e.log.Debug().Str("file", table.name).Int("rows", len(table.rankings)).Str("location", location).Msg("Exported ranking table")
	}

	e.log.Info().Int("files", len(locations)).Msg("Ranking export complete")
	return locations, nil
}

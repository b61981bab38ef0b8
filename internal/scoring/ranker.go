package scoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/pkg/logger"
)

const (
	// DefaultTopN is the size of the top list
	DefaultTopN = 20
	// DefaultLookbackDays is the analysis window
	DefaultLookbackDays = 30

	securitiesPageSize = 1000
	maxSecuritiesPages = 10
	historyPageSize    = 1000
)

// MarketData is the subset of the SSI client the ranker needs.
type MarketData interface {
	Securities(ctx context.Context, q ssi.SecuritiesQuery) (*ssi.Page[ssi.Security], error)
	DailyOhlc(ctx context.Context, q ssi.OHLCQuery) (*ssi.Page[ssi.Bar], error)
	DailyStockPrice(ctx context.Context, q ssi.StockPriceQuery) (*ssi.Page[ssi.DailyPrice], error)
}

// RankerConfig holds ranker configuration
type RankerConfig struct {
	Market       string
	TopN         int
	LookbackDays int
	Weights      *Weights // nil selects DefaultWeights
}

// Snapshot is the result of one ranking run.
type Snapshot struct {
	Market      string    `json:"market"`
	GeneratedAt time.Time `json:"generated_at"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	All         []Ranking `json:"all"`
	Top         []Ranking `json:"top"`
	Failed      []string  `json:"failed,omitempty"`
	Source      string    `json:"source"`
}

// Ranker scores every security of a market and keeps the latest snapshot.
type Ranker struct {
	data         MarketData
	orchestrator *batch.Orchestrator
	market       string
	topN         int
	lookbackDays int
	weights      Weights
	now          func() time.Time
	log          zerolog.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

// NewRanker creates a ranker.
func NewRanker(cfg RankerConfig, data MarketData, orchestrator *batch.Orchestrator, log zerolog.Logger) *Ranker {
	r := &Ranker{
		data:         data,
		orchestrator: orchestrator,
		market:       strings.ToUpper(cfg.Market),
		topN:         cfg.TopN,
		lookbackDays: cfg.LookbackDays,
		weights:      DefaultWeights(),
		now:          time.Now,
		log:          logger.Component(log, "ranker"),
	}
	if r.market == "" {
		r.market = "HOSE"
	}
	if r.topN <= 0 {
		r.topN = DefaultTopN
	}
	if r.lookbackDays <= 0 {
		r.lookbackDays = DefaultLookbackDays
	}
	if cfg.Weights != nil {
		r.weights = *cfg.Weights
	}
	return r
}

// Market returns the ranked market.
func (r *Ranker) Market() string {
	return r.market
}

// TopN returns the configured top list size.
func (r *Ranker) TopN() int {
	return r.topN
}

// Run lists the market's securities and ranks them all.
func (r *Ranker) Run(ctx context.Context, opts ...batch.Option) (*Snapshot, error) {
	symbols, err := r.listSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no securities listed for %s", r.market)
	}
	return r.RankSymbols(ctx, symbols, opts...)
}

// RankSymbols ranks the given symbols. Each symbol costs two upstream calls
// (candles and daily prices) and symbols are paced by the orchestrator.
// Symbols whose data cannot be fetched are left out of the ranking and listed
// in Snapshot.Failed.
func (r *Ranker) RankSymbols(ctx context.Context, symbols []string, opts ...batch.Option) (*Snapshot, error) {
	to := r.now()
	from := to.AddDate(0, 0, -r.lookbackDays)

	fetch := func(ctx context.Context, symbol string) (Features, error) {
		bars, err := r.data.DailyOhlc(ctx, ssi.OHLCQuery{
			Symbol:    symbol,
			From:      from,
			To:        to,
			PageIndex: 1,
			PageSize:  historyPageSize,
			Ascending: true,
		})
		if err != nil {
			return Features{}, fmt.Errorf("candles: %w", err)
		}
		prices, err := r.data.DailyStockPrice(ctx, ssi.StockPriceQuery{
			Symbol:    symbol,
			Market:    r.market,
			From:      from,
			To:        to,
			PageIndex: 1,
			PageSize:  historyPageSize,
		})
		if err != nil {
			return Features{}, fmt.Errorf("daily prices: %w", err)
		}
		return ComputeFeatures(bars.Items, ascending(prices.Items)), nil
	}

	r.log.Info().Int("symbols", len(symbols)).Str("market", r.market).Msg("Ranking started")
	results, err := batch.Fetch(ctx, r.orchestrator, symbols, fetch, opts...)
	if err != nil {
		return nil, fmt.Errorf("ranking interrupted: %w", err)
	}

	set := make([]SymbolFeatures, 0, len(results))
	var failed []string
	for _, res := range results {
		if !res.Success {
			failed = append(failed, res.Identifier)
			continue
		}
		set = append(set, SymbolFeatures{Symbol: res.Identifier, Features: res.Value})
	}

	all := Rank(set, r.weights)
	snapshot := &Snapshot{
		Market:      r.market,
		GeneratedAt: r.now(),
		From:        from,
		To:          to,
		All:         all,
		Top:         Top(all, r.topN),
		Failed:      failed,
		Source:      "live",
	}
	r.setLatest(snapshot)

	r.log.Info().
		Int("ranked", len(all)).
		Int("failed", len(failed)).
		Msg("Ranking finished")
	return snapshot, nil
}

// Latest returns the most recent snapshot.
func (r *Ranker) Latest() (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latest != nil
}

// Seed installs a pre-computed ranking, e.g. loaded from a CSV at startup.
// It does not replace a live snapshot.
func (r *Ranker) Seed(rankings []Ranking) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest != nil {
		return
	}
	r.latest = &Snapshot{
		Market:      r.market,
		GeneratedAt: r.now(),
		All:         rankings,
		Top:         Top(rankings, r.topN),
		Source:      "seed",
	}
}

func (r *Ranker) setLatest(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = s
}

func (r *Ranker) listSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	for page := 1; page <= maxSecuritiesPages; page++ {
		result, err := r.data.Securities(ctx, ssi.SecuritiesQuery{
			Market:    r.market,
			PageIndex: page,
			PageSize:  securitiesPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s securities: %w", r.market, err)
		}
		for _, s := range result.Items {
			symbols = append(symbols, s.Symbol)
		}
		if len(result.Items) < securitiesPageSize || len(symbols) >= result.Total {
			break
		}
	}
	return symbols, nil
}

// ascending orders daily prices oldest first; DailyStockPrice returns newest first.
func ascending(prices []ssi.DailyPrice) []ssi.DailyPrice {
	if len(prices) < 2 || !prices[0].Date.After(prices[len(prices)-1].Date) {
		return prices
	}
	out := make([]ssi.DailyPrice, len(prices))
	for i, p := range prices {
		out[len(prices)-1-i] = p
	}
	return out
}

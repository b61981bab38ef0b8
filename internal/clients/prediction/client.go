// Package prediction talks to the factor-model and market-state prediction services.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
)

var (
	// ErrInvalidModel is returned for an unknown factor model
	ErrInvalidModel = errors.New("invalid factor model")
	// ErrInvalidMarketState is returned when the market state is not BB or UD
	ErrInvalidMarketState = errors.New("invalid market state: must be BB or UD")
	// ErrEmptyPortfolio is returned when no tickers are supplied
	ErrEmptyPortfolio = errors.New("portfolio has no tickers")
	// ErrInvalidPortfolio is returned for weights or a model choice the services cannot accept
	ErrInvalidPortfolio = errors.New("invalid portfolio input")
)

// Config holds client configuration
type Config struct {
	FactorURL     string
	PredictionURL string
	Timeout       time.Duration
	Classifier    *cache.Classifier
	HTTPClient    *http.Client
}

// Client queries both analytics services through the response cache.
type Client struct {
	factors     *cachedhttp.Client
	predictions *cachedhttp.Client
	log         zerolog.Logger
}

// NewClient creates a client.
func NewClient(cfg Config, c *cache.Cache, log zerolog.Logger) *Client {
	return &Client{
		factors: cachedhttp.New(cachedhttp.Config{
			Service:    "factor",
			BaseURL:    cfg.FactorURL,
			Timeout:    cfg.Timeout,
			Cache:      c,
			Classifier: cfg.Classifier,
			HTTPClient: cfg.HTTPClient,
			Validate:   validateObject,
		}, log),
		// A ticker the prediction service has never seen is a 404; treat it as no data.
		predictions: cachedhttp.New(cachedhttp.Config{
			Service:         "prediction",
			BaseURL:         cfg.PredictionURL,
			Timeout:         cfg.Timeout,
			Cache:           c,
			Classifier:      cfg.Classifier,
			HTTPClient:      cfg.HTTPClient,
			EmptyOnNotFound: true,
			Validate:        validateObject,
		}, log),
		log: log.With().Str("client", "prediction").Logger(),
	}
}

// FactorModel runs a factor regression for the portfolio.
func (c *Client) FactorModel(ctx context.Context, model Model, in PortfolioInput) (*FactorResult, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	body, err := portfolioBody(in)
	if err != nil {
		return nil, err
	}

	var result FactorResult
	err = c.factors.DoJSON(ctx, cachedhttp.Request{
		Method:    http.MethodPost,
		Endpoint:  "/api/" + string(model),
		Body:      body,
		Cacheable: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("factor model %s: %w", model, err)
	}
	return &result, nil
}

// AIPredict forecasts next-month and next-year portfolio returns.
func (c *Client) AIPredict(ctx context.Context, in PortfolioInput) (*AIPrediction, error) {
	body, err := portfolioBody(in)
	if err != nil {
		return nil, err
	}

	var result AIPrediction
	err = c.factors.DoJSON(ctx, cachedhttp.Request{
		Method:    http.MethodPost,
		Endpoint:  "/api/ai_predict",
		Body:      body,
		Cacheable: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("ai predict: %w", err)
	}
	return &result, nil
}

// StockAllModels returns every model's predictions for ticker. An unknown
// ticker yields an empty result, not an error. monthYear (YYYY-MM) is optional.
func (c *Client) StockAllModels(ctx context.Context, ticker string, state MarketState, monthYear string) (*StockModels, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarketState, state)
	}

	query := map[string]any{
		"ticker":       ticker,
		"market_state": string(state),
	}
	if monthYear != "" {
		query["month_year"] = monthYear
	}

	var result StockModels
	err := c.predictions.DoJSON(ctx, cachedhttp.Request{
		Endpoint:  "/stock-all-models",
		Query:     query,
		Cacheable: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("stock models for %s: %w", ticker, err)
	}
	if result.Empty() {
		c.log.Debug().Str("ticker", ticker).Str("market_state", string(state)).Msg("No predictions for ticker")
	}
	return &result, nil
}

// LatestDateAll returns the most recent prediction of every ticker.
func (c *Client) LatestDateAll(ctx context.Context, state MarketState) (*LatestAll, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarketState, state)
	}

	var result LatestAll
	err := c.predictions.DoJSON(ctx, cachedhttp.Request{
		Endpoint:  "/latest-date-all-ticker-data",
		Query:     map[string]any{"market_state": string(state)},
		Cacheable: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("latest predictions: %w", err)
	}
	return &result, nil
}

// AvailableFilters lists tickers, models and months present in a dataset.
func (c *Client) AvailableFilters(ctx context.Context, state MarketState) (*Filters, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarketState, state)
	}

	var result Filters
	err := c.predictions.DoJSON(ctx, cachedhttp.Request{
		Endpoint:  "/available-filters",
		Query:     map[string]any{"data_type": string(state)},
		Cacheable: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("available filters: %w", err)
	}
	return &result, nil
}

// portfolioBody applies service defaults so equivalent inputs share a cache key.
func portfolioBody(in PortfolioInput) (map[string]any, error) {
	if len(in.Tickers) == 0 {
		return nil, ErrEmptyPortfolio
	}
	if len(in.Weights) > 0 && len(in.Weights) != len(in.Tickers) {
		return nil, fmt.Errorf("%w: got %d weights for %d tickers", ErrInvalidPortfolio, len(in.Weights), len(in.Tickers))
	}

	tickers := make([]string, len(in.Tickers))
	for i, t := range in.Tickers {
		tickers[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	investment := in.Investment
	if investment <= 0 {
		investment = DefaultInvestment
	}
	factors := in.Factors
	if len(factors) == 0 {
		factors = DefaultFactors()
	}
	model := strings.ToLower(in.ModelChoice)
	if model == "" {
		model = ModelLinear
	}
	if model != ModelLinear && model != ModelXGBoost {
		return nil, fmt.Errorf("%w: unknown model choice %q", ErrInvalidPortfolio, in.ModelChoice)
	}

	body := map[string]any{
		"tickers":      tickers,
		"investment":   investment,
		"factors":      factors,
		"model_choice": model,
	}
	if len(in.Weights) > 0 {
		body["weights"] = in.Weights
	}
	return body, nil
}

func validateObject(body []byte) error {
	if len(body) == 0 || body[0] != '{' {
		return errors.New("expected a JSON object")
	}
	return nil
}

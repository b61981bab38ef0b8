// Package ssi is a client for the SSI FastConnect market data API.
package ssi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
)

const (
	// DefaultBaseURL is the public FastConnect data endpoint
	DefaultBaseURL = "https://fc-data.ssi.com.vn/api/v2"

	defaultPageIndex = 1
	defaultPageSize  = 100
	maxPageSize      = 1000
)

// ErrMissingCredentials is returned by Login when no consumer credentials are configured.
var ErrMissingCredentials = errors.New("ssi: consumer credentials not configured")

// Config holds client configuration
type Config struct {
	BaseURL        string
	ConsumerID     string
	ConsumerSecret string
	Timeout        time.Duration
	Classifier     *cache.Classifier
	HTTPClient     *http.Client
}

// Client provides methods to fetch market data from SSI FastConnect.
// Every market call goes through the response cache.
type Client struct {
	http           *cachedhttp.Client
	session        *cachedhttp.Session
	consumerID     string
	consumerSecret string
	loginMu        sync.Mutex
	log            zerolog.Logger
}

// NewClient creates a client. A nil cache disables response caching.
func NewClient(cfg Config, c *cache.Cache, session *cachedhttp.Session, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if session == nil {
		session = cachedhttp.NewSession()
	}

	return &Client{
		http: cachedhttp.New(cachedhttp.Config{
			Service:    "ssi",
			BaseURL:    baseURL,
			Timeout:    cfg.Timeout,
			Cache:      c,
			Classifier: cfg.Classifier,
			Session:    session,
			HTTPClient: cfg.HTTPClient,
			Validate:   validateEnvelope,
		}, log),
		session:        session,
		consumerID:     cfg.ConsumerID,
		consumerSecret: cfg.ConsumerSecret,
		log:            log.With().Str("client", "ssi").Logger(),
	}
}

// Session returns the auth session shared by all calls.
func (c *Client) Session() *cachedhttp.Session {
	return c.session
}

// Login exchanges the consumer credentials for an access token and stores it
// in the session. Subsequent calls carry it as a bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.consumerID == "" || c.consumerSecret == "" {
		return ErrMissingCredentials
	}

	c.log.Debug().Msg("Requesting access token")

	body, err := c.http.Do(ctx, cachedhttp.Request{
		Method:   http.MethodPost,
		Endpoint: "/Market/AccessToken",
		Body: map[string]any{
			"consumerID":     c.consumerID,
			"consumerSecret": c.consumerSecret,
		},
	})
	if err != nil {
		return fmt.Errorf("ssi login failed: %w", err)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return fmt.Errorf("ssi login failed: %w", err)
	}
	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Payload(), &data); err != nil || data.AccessToken == "" {
		return fmt.Errorf("ssi login failed: %w: no access token in response", cachedhttp.ErrInvalidResponse)
	}

	c.session.SetToken(data.AccessToken)
	c.log.Info().Msg("Authenticated with SSI FastConnect")
	return nil
}

// EnsureLogin logs in once; later calls are no-ops while a token is held.
func (c *Client) EnsureLogin(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.session.Authenticated() {
		return nil
	}
	return c.Login(ctx)
}

// Securities returns one page of listed securities for a market.
func (c *Client) Securities(ctx context.Context, q SecuritiesQuery) (*Page[Security], error) {
	pageIndex, pageSize := paging(q.PageIndex, q.PageSize)
	env, err := c.get(ctx, "/Market/Securities", map[string]any{
		"market":    strings.ToUpper(q.Market),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return transformPage(env, pageIndex, pageSize, transformSecurity)
}

// SecuritiesDetails returns reference data for one symbol.
func (c *Client) SecuritiesDetails(ctx context.Context, market, symbol string) ([]SecurityDetail, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	env, err := c.get(ctx, "/Market/SecuritiesDetails", map[string]any{
		"market":    strings.ToUpper(market),
		"symbol":    strings.ToUpper(symbol),
		"pageIndex": defaultPageIndex,
		"pageSize":  defaultPageSize,
	})
	if err != nil {
		return nil, err
	}
	records, err := records(env)
	if err != nil {
		return nil, err
	}
	return transformSecurityDetails(records), nil
}

// IndexList returns the indices of an exchange.
func (c *Client) IndexList(ctx context.Context, exchange string, pageIndex, pageSize int) (*Page[Index], error) {
	pageIndex, pageSize = paging(pageIndex, pageSize)
	env, err := c.get(ctx, "/Market/IndexList", map[string]any{
		"exchange":  strings.ToUpper(exchange),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return transformPage(env, pageIndex, pageSize, transformIndex)
}

// IndexComponents returns the constituents of an index.
func (c *Client) IndexComponents(ctx context.Context, indexCode string, pageIndex, pageSize int) ([]IndexComponents, error) {
	if indexCode == "" {
		return nil, fmt.Errorf("index code is required")
	}
	pageIndex, pageSize = paging(pageIndex, pageSize)
	env, err := c.get(ctx, "/Market/IndexComponents", map[string]any{
		"indexCode": strings.ToUpper(indexCode),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	})
	if err != nil {
		return nil, err
	}
	page, err := transformPage(env, pageIndex, pageSize, transformIndexComponents)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// DailyOhlc returns daily candles for a symbol.
func (c *Client) DailyOhlc(ctx context.Context, q OHLCQuery) (*Page[Bar], error) {
	return c.ohlc(ctx, "/Market/DailyOhlc", q)
}

// IntradayOhlc returns intraday candles for a symbol.
func (c *Client) IntradayOhlc(ctx context.Context, q OHLCQuery) (*Page[Bar], error) {
	return c.ohlc(ctx, "/Market/IntradayOhlc", q)
}

func (c *Client) ohlc(ctx context.Context, endpoint string, q OHLCQuery) (*Page[Bar], error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	pageIndex, pageSize := paging(q.PageIndex, q.PageSize)
	from, to := dateRange(q.From, q.To)
	env, err := c.get(ctx, endpoint, map[string]any{
		"symbol":    strings.ToUpper(q.Symbol),
		"fromDate":  FormatDate(from),
		"toDate":    FormatDate(to),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
		"ascending": q.Ascending,
	})
	if err != nil {
		return nil, err
	}
	return transformPage(env, pageIndex, pageSize, transformBar)
}

// DailyIndex returns daily values for an index.
func (c *Client) DailyIndex(ctx context.Context, q IndexQuery) (*Page[IndexBar], error) {
	if q.IndexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	pageIndex, pageSize := paging(q.PageIndex, q.PageSize)
	from, to := dateRange(q.From, q.To)
	env, err := c.get(ctx, "/Market/DailyIndex", map[string]any{
		"indexId":   strings.ToUpper(q.IndexID),
		"fromDate":  FormatDate(from),
		"toDate":    FormatDate(to),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return transformPage(env, pageIndex, pageSize, transformIndexBar)
}

// DailyStockPrice returns daily price and foreign-flow statistics.
func (c *Client) DailyStockPrice(ctx context.Context, q StockPriceQuery) (*Page[DailyPrice], error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	pageIndex, pageSize := paging(q.PageIndex, q.PageSize)
	from, to := dateRange(q.From, q.To)
	env, err := c.get(ctx, "/Market/DailyStockPrice", map[string]any{
		"symbol":    strings.ToUpper(q.Symbol),
		"market":    strings.ToUpper(q.Market),
		"fromDate":  FormatDate(from),
		"toDate":    FormatDate(to),
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return transformPage(env, pageIndex, pageSize, transformDailyPrice)
}

func (c *Client) get(ctx context.Context, endpoint string, query map[string]any) (*Envelope, error) {
	body, err := c.http.Do(ctx, cachedhttp.Request{
		Method:    http.MethodGet,
		Endpoint:  endpoint,
		Query:     query,
		Cacheable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ssi %s: %w", endpoint, err)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("ssi %s: %w", endpoint, err)
	}
	return env, nil
}

func records(env *Envelope) ([]map[string]interface{}, error) {
	recs, err := env.Records()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cachedhttp.ErrInvalidResponse, err)
	}
	return recs, nil
}

func transformPage[T any](env *Envelope, pageIndex, pageSize int, transform func(map[string]interface{}) T) (*Page[T], error) {
	recs, err := records(env)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(recs))
	for _, rec := range recs {
		items = append(items, transform(rec))
	}
	total := int(env.TotalRecord)
	if total == 0 {
		total = len(items)
	}
	return &Page[T]{
		Items:     items,
		Total:     total,
		PageIndex: pageIndex,
		PageSize:  pageSize,
	}, nil
}

func paging(pageIndex, pageSize int) (int, int) {
	if pageIndex <= 0 {
		pageIndex = defaultPageIndex
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageIndex, pageSize
}

// dateRange defaults to the trailing 30 days. Dates are sent at day
// granularity, so calls within the same day share a cache key.
func dateRange(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		from, to = to, from
	}
	return from, to
}

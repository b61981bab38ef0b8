// Package cachedhttp wraps upstream JSON calls with the response cache and
// classifies failures into network, rate-limit, auth and payload errors.
package cachedhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/metrics"
	"github.com/aristath/vnmarket/pkg/logger"
)

const (
	// DefaultTimeout applies to every upstream call
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 32 << 20
	maxLoggedBody    = 500
)

// emptyResult is returned for a 404 when EmptyOnNotFound is set.
var emptyResult = []byte(`{"status":"success","data":[]}`)

// Request describes one logical upstream call.
type Request struct {
	Method    string         // GET when empty
	Endpoint  string         // path relative to the base URL, e.g. /Market/Securities
	Query     map[string]any // encoded into the URL
	Body      map[string]any // JSON-encoded request body
	Cacheable bool
	TTL       time.Duration // overrides the classifier tier when positive
}

// Config holds client configuration
type Config struct {
	Service    string // label for logs and metrics, e.g. "ssi"
	BaseURL    string
	Timeout    time.Duration
	Cache      *cache.Cache      // nil disables caching
	Classifier *cache.Classifier // TTL tier selection; defaults to cache.NewClassifier
	Session    *Session          // nil sends no Authorization header
	HTTPClient *http.Client

	// EmptyOnNotFound turns a 404 into a successful empty result.
	EmptyOnNotFound bool
	// Validate runs on every 2xx body. Unclassified errors become
	// ErrInvalidResponse; errors wrapping a failure kind pass through.
	Validate func(body []byte) error
}

// Client performs cache-aware upstream requests.
type Client struct {
	service         string
	baseURL         string
	timeout         time.Duration
	httpClient      *http.Client
	cache           *cache.Cache
	classifier      *cache.Classifier
	session         *Session
	emptyOnNotFound bool
	validate        func([]byte) error
	group           singleflight.Group
	now             func() time.Time
	log             zerolog.Logger
}

// New creates a client.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = cache.NewClassifier(0, 0)
	}
	service := cfg.Service
	if service == "" {
		service = "upstream"
	}

	return &Client{
		service:         service,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		timeout:         timeout,
		httpClient:      httpClient,
		cache:           cfg.Cache,
		classifier:      classifier,
		session:         cfg.Session,
		emptyOnNotFound: cfg.EmptyOnNotFound,
		validate:        cfg.Validate,
		now:             time.Now,
		log:             logger.Component(log, service+"-http"),
	}
}

// BaseURL returns the upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session attached to this client, possibly nil.
func (c *Client) Session() *Session {
	return c.session
}

// Do performs req. A cacheable request is served from the cache when a live
// entry exists, with no network I/O. Otherwise exactly one upstream call is
// made (concurrent identical misses share it) and a successful payload is
// stored before returning. A caller whose ctx ends stops waiting without
// cancelling the call other callers share.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)

	if !req.Cacheable || c.cache == nil {
		payload, _, err := c.fetch(ctx, req)
		return payload, err
	}

	key := cache.ScopedKey(c.service+"@"+c.baseURL, cache.BuildKey(req.Method, req.Endpoint, req.Query, req.Body))
	if payload, ok := c.cache.Get(key); ok {
		return payload, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, c.transportError(req, err)
	}

	// The shared call is detached from any one caller; fetch still bounds it
	// with the client timeout.
	flight := c.group.DoChan(key, func() (interface{}, error) {
		payload, synthesized, err := c.fetch(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		if !synthesized {
			c.cache.SetWithTTL(key, payload, c.ttlFor(req))
		}
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, c.transportError(req, ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug().Str("key", key).Msg("Shared in-flight upstream result")
		}
		return bytes.Clone(res.Val.([]byte)), nil
	}
}

// DoJSON performs req and decodes the payload into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out interface{}) error {
	payload, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrInvalidResponse, req.Endpoint, err)
	}
	return nil
}

func (c *Client) ttlFor(req Request) time.Duration {
	if req.TTL > 0 {
		return req.TTL
	}
	return c.classifier.TTLFor(req.Endpoint)
}

// fetch performs one network call. synthesized is true when the payload was
// produced locally (404 as empty) and must not be cached.
func (c *Client) fetch(ctx context.Context, req Request) (payload []byte, synthesized bool, err error) {
	started := c.now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = outcomeLabel(err)
		}
		metrics.ObserveUpstream(c.service, outcome, started)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, false, err
	}
	fullURL := httpReq.URL.String()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, c.transportError(req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, false, c.transportError(req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound && c.emptyOnNotFound {
			c.log.Debug().Str("url", fullURL).Msg("Not found, returning empty result")
			outcome = "not_found"
			return bytes.Clone(emptyResult), true, nil
		}

		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", truncate(string(body), maxLoggedBody)).
			Str("url", fullURL).
			Msg("Upstream returned error status")

		return nil, false, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        fullURL,
			Body:       truncate(string(body), maxLoggedBody),
			Kind:       kindForStatus(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, fmt.Errorf("%w: empty body from %s", ErrInvalidResponse, fullURL)
	}
	if !json.Valid(trimmed) {
		return nil, false, fmt.Errorf("%w: malformed JSON from %s", ErrInvalidResponse, fullURL)
	}

	if message, limited := rateLimitMessage(trimmed); limited {
		c.log.Warn().Str("url", fullURL).Str("message", message).Msg("Rate limit inferred from response message")
		return nil, false, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        fullURL,
			Body:       truncate(message, maxLoggedBody),
			Kind:       ErrRateLimited,
			Heuristic:  true,
		}
	}

	if c.validate != nil {
		if err := c.validate(trimmed); err != nil {
			if isClassified(err) {
				return nil, false, err
			}
			return nil, false, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, req.Endpoint, err)
		}
	}

	return trimmed, false, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	fullURL := c.baseURL + req.Endpoint
	if len(req.Query) > 0 {
		fullURL += "?" + encodeQuery(req.Query)
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body for %s: %w", req.Endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", req.Endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) transportError(req Request, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.log.Warn().Err(err).Str("endpoint", req.Endpoint).Dur("timeout", c.timeout).Msg("Upstream request timed out")
		return fmt.Errorf("%w: %w: %s %s", ErrNetworkFailure, ErrTimeout, req.Method, req.Endpoint)
	}
	c.log.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Upstream request failed")
	return fmt.Errorf("%w: %s %s: %w", ErrNetworkFailure, req.Method, req.Endpoint, err)
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		return ErrUnexpectedStatus
	}
}

// isClassified reports whether err already carries one of the failure kinds.
func isClassified(err error) bool {
	for _, kind := range []error{ErrNetworkFailure, ErrRateLimited, ErrInvalidResponse, ErrUnauthorized, ErrUnexpectedStatus} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetworkFailure):
		return "network_failure"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "error"
	}
}

// rateLimitMessage is the weak fallback signal: a non-success envelope whose
// message mentions "rate limit".
func rateLimitMessage(body []byte) (string, bool) {
	if body[0] != '{' {
		return "", false
	}
	var probe struct {
		Status  interface{} `json:"status"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", false
	}
	if probe.Status == nil || IsSuccessStatus(probe.Status) {
		return "", false
	}
	if strings.Contains(strings.ToLower(probe.Message), "rate limit") {
		return probe.Message, true
	}
	return "", false
}

// IsSuccessStatus interprets an envelope status field. Upstreams send 200,
// "200", "Success", "success" or "OK".
func IsSuccessStatus(status interface{}) bool {
	switch s := status.(type) {
	case float64:
		return s >= 200 && s < 300
	case int:
		return s >= 200 && s < 300
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "success", "ok", "200":
			return true
		}
	case bool:
		return s
	}
	return false
}

func encodeQuery(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	values := url.Values{}
	for _, name := range names {
		values.Set(name, stringify(params[name]))
	}
	return values.Encode()
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

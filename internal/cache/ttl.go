package cache

import (
	"strings"
	"time"
)

// TTL tiers
const (
	TierShort = 5 * time.Minute  // prices, OHLC, predictions
	TierLong  = 30 * time.Minute // securities lists, index membership, filters
)

// DefaultStaticEndpoints change rarely and are cached on the long tier.
var DefaultStaticEndpoints = []string{
	"/Market/Securities",
	"/Market/SecuritiesDetails",
	"/Market/IndexList",
	"/Market/IndexComponents",
	"/available-filters",
}

// Classifier picks a TTL tier from an endpoint path.
type Classifier struct {
	Short  time.Duration
	Long   time.Duration
	static map[string]struct{}
}

// NewClassifier creates a classifier. With no static endpoints given,
// DefaultStaticEndpoints is used.
func NewClassifier(short, long time.Duration, staticEndpoints ...string) *Classifier {
	if short <= 0 {
		short = TierShort
	}
	if long <= 0 {
		long = TierLong
	}
	if len(staticEndpoints) == 0 {
		staticEndpoints = DefaultStaticEndpoints
	}
	static := make(map[string]struct{}, len(staticEndpoints))
	for _, ep := range staticEndpoints {
		static[normalizeEndpoint(ep)] = struct{}{}
	}
	return &Classifier{Short: short, Long: long, static: static}
}

// IsStatic reports whether the endpoint belongs to the long tier.
func (c *Classifier) IsStatic(endpoint string) bool {
	_, ok := c.static[normalizeEndpoint(endpoint)]
	return ok
}

// TTLFor returns the tier TTL for an endpoint.
func (c *Classifier) TTLFor(endpoint string) time.Duration {
	if c.IsStatic(endpoint) {
		return c.Long
	}
	return c.Short
}

func normalizeEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return strings.ToLower(strings.TrimRight(endpoint, "/"))
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier(0, 0)

	tests := []struct {
		endpoint string
		expected time.Duration
	}{
		{"/Market/Securities", TierLong},
		{"/market/securities/", TierLong},
		{"/Market/SecuritiesDetails?Symbol=HPG", TierLong},
		{"/Market/IndexComponents", TierLong},
		{"/available-filters", TierLong},
		{"/Market/DailyOhlc", TierShort},
		{"/Market/DailyStockPrice", TierShort},
		{"/stock-all-models", TierShort},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.TTLFor(tt.endpoint))
		})
	}
}

func TestClassifier_CustomTiers(t *testing.T) {
	c := NewClassifier(time.Minute, time.Hour, "/static")

	assert.Equal(t, time.Hour, c.TTLFor("/static"))
	assert.Equal(t, time.Minute, c.TTLFor("/Market/Securities"))
	assert.True(t, c.IsStatic("/STATIC"))
}

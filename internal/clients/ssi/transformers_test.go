package ssi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFloat64(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]interface{}
		keys []string
		want float64
	}{
		{"number", map[string]interface{}{"Close": 12.5}, closeKeys, 12.5},
		{"numeric string", map[string]interface{}{"Close": "12.5"}, closeKeys, 12.5},
		{"thousands separator", map[string]interface{}{"Volume": "1,234,567"}, volumeKeys, 1234567},
		{"alias", map[string]interface{}{"ClosePrice": "7"}, closeKeys, 7},
		{"case insensitive", map[string]interface{}{"close": 3.0}, closeKeys, 3},
		{"first alias wins", map[string]interface{}{"Close": 1.0, "ClosePrice": 2.0}, closeKeys, 1},
		{"null skipped", map[string]interface{}{"Close": nil, "ClosePrice": "9"}, closeKeys, 9},
		{"garbage", map[string]interface{}{"Close": "n/a"}, closeKeys, 0},
		{"missing", map[string]interface{}{}, closeKeys, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, getFloat64(tt.m, tt.keys...), 1e-9)
		})
	}
}

func TestGetString(t *testing.T) {
	assert.Equal(t, "HPG", getString(map[string]interface{}{"StockSymbol": " HPG "}, symbolKeys...))
	assert.Equal(t, "30", getString(map[string]interface{}{"TotalSymbolNo": 30.0}, "TotalSymbolNo"))
	assert.Equal(t, "", getString(map[string]interface{}{"Other": "x"}, symbolKeys...))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, ParseDate("04/03/2024"))
	assert.Equal(t, want, ParseDate("2024-03-04"))
	assert.Equal(t, want, ParseDate("2024-03-04T00:00:00"))
	assert.True(t, ParseDate("yesterday").IsZero())
	assert.Equal(t, "04/03/2024", FormatDate(want))
}

func TestTransformDailyPrice(t *testing.T) {
	p := transformDailyPrice(map[string]interface{}{
		"Symbol":             "hpg",
		"TradingDate":        "04/03/2024",
		"OpenPrice":          "28000",
		"HighestPrice":       "28500",
		"LowestPrice":        "27800",
		"ClosePrice":         "28350",
		"TotalTradedVol":     "31,200,000",
		"ForeignBuyVolTotal": "2500000",
		"PerPriceChange":     "1.25",
	})

	assert.Equal(t, "HPG", p.Symbol)
	assert.InDelta(t, 28000, p.OpenPrice, 1e-9)
	assert.InDelta(t, 28500, p.HighPrice, 1e-9)
	assert.InDelta(t, 27800, p.LowPrice, 1e-9)
	assert.InDelta(t, 28350, p.ClosePrice, 1e-9)
	assert.InDelta(t, 31200000, p.TotalTradedVol, 1e-9)
	assert.InDelta(t, 2500000, p.ForeignBuyVol, 1e-9)
	assert.InDelta(t, 1.25, p.PercentChange, 1e-9)
}

func TestEnvelopeRecords(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"status":200,"data":{"Symbol":"A"}}`))
	require.NoError(t, err)
	recs, err := env.Records()
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	env, err = decodeEnvelope([]byte(`{"status":200,"data":null,"dataList":[{"Symbol":"A"},{"Symbol":"B"}],"totalRecord":"2"}`))
	require.NoError(t, err)
	recs, err = env.Records()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, flexInt(2), env.TotalRecord)

	env, err = decodeEnvelope([]byte(`{"status":200,"data":null}`))
	require.NoError(t, err)
	recs, err = env.Records()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestValidateEnvelope(t *testing.T) {
	assert.NoError(t, validateEnvelope([]byte(`{"status":200,"data":[]}`)))
	assert.NoError(t, validateEnvelope([]byte(`{"status":"Success","dataList":[]}`)))
	assert.Error(t, validateEnvelope([]byte(`[1,2]`)))
	assert.Error(t, validateEnvelope([]byte(`{"message":"x","data":[]}`)))
	assert.Error(t, validateEnvelope([]byte(`{"status":200}`)))

	err := validateEnvelope([]byte(`{"status":"429","message":"slow down","data":null}`))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "slow down", apiErr.Message)
}

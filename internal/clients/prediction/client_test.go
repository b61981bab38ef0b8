package prediction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vnmarket/internal/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := cache.New(cache.Config{MaxEntries: 32}, zerolog.Nop())
	require.NoError(t, err)
	return NewClient(Config{FactorURL: server.URL, PredictionURL: server.URL}, c, zerolog.Nop())
}

func TestFactorModel_AppliesDefaultsAndCaches(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/3factors", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"HPG", "VNM"}, body["tickers"])
		assert.Equal(t, float64(DefaultInvestment), body["investment"])
		assert.Equal(t, "linear", body["model_choice"])
		assert.Len(t, body["factors"], 6)

		_, _ = w.Write([]byte(`{"alpha":0.42,"alpha_p_value":0.03,"r_squared":0.61,
			"beta":{"mkt":1.1,"size":0.2,"value":-0.1},"beta_p_values":{"mkt":0.001,"size":null,"value":0.4},
			"residual_std":2.3,"n_samples":58}`))
	})

	in := PortfolioInput{Tickers: []string{"hpg", "vnm"}, Weights: []float64{0.4, 0.6}}
	result, err := client.FactorModel(context.Background(), ThreeFactor, in)
	require.NoError(t, err)
	_, err = client.FactorModel(context.Background(), ThreeFactor, in)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.InDelta(t, 0.42, result.Alpha, 1e-9)
	assert.Equal(t, 58, result.NSamples)
	assert.InDelta(t, 1.1, result.Beta["mkt"], 1e-9)
	assert.Nil(t, result.BetaPValues["size"])
	require.NotNil(t, result.AlphaPValue)
	assert.InDelta(t, 0.03, *result.AlphaPValue, 1e-9)
}

func TestFactorModel_RejectsBadInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx := context.Background()

	_, err := client.FactorModel(ctx, Model("7factors"), PortfolioInput{Tickers: []string{"HPG"}})
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = client.FactorModel(ctx, OneFactor, PortfolioInput{})
	assert.ErrorIs(t, err, ErrEmptyPortfolio)

	_, err = client.FactorModel(ctx, OneFactor, PortfolioInput{Tickers: []string{"HPG"}, Weights: []float64{0.5, 0.5}})
	assert.ErrorIs(t, err, ErrInvalidPortfolio)

	_, err = client.AIPredict(ctx, PortfolioInput{Tickers: []string{"HPG"}, ModelChoice: "forest"})
	assert.ErrorIs(t, err, ErrInvalidPortfolio)
}

func TestAIPredict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai_predict", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"XGBoost","factors_used":["mkt","size"],"mse":4.2,"alpha_p_value":null,
			"factor_p_values":{},"next_month_prediction (%)":1.5,"next_year_estimate (%)":19.56,
			"investment":1000000000,"expected_gain_next_month (VND)":15000000,"expected_gain_next_year (VND)":195600000}`))
	})

	result, err := client.AIPredict(context.Background(), PortfolioInput{Tickers: []string{"FPT"}, ModelChoice: "XGBoost"})
	require.NoError(t, err)
	assert.Equal(t, "XGBoost", result.Model)
	assert.InDelta(t, 1.5, result.NextMonthPct, 1e-9)
	assert.InDelta(t, 19.56, result.NextYearPct, 1e-9)
	assert.InDelta(t, 195600000, result.ExpectedGainNextYear, 1e-9)
	assert.Nil(t, result.AlphaPValue)
}

func TestStockAllModels_NotFoundIsEmpty(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "ZZZ", r.URL.Query().Get("ticker"))
		assert.Equal(t, "BB", r.URL.Query().Get("market_state"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Ticker 'ZZZ' not found in BB data"}`))
	})

	result, err := client.StockAllModels(context.Background(), "zzz", BullBear, "")
	require.NoError(t, err)
	assert.True(t, result.Empty())

	// Empty results are not cached
	_, err = client.StockAllModels(context.Background(), "zzz", BullBear, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestStockAllModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock-all-models", r.URL.Path)
		assert.Equal(t, "2024-03", r.URL.Query().Get("month_year"))
		_, _ = w.Write([]byte(`{"status":"success","timestamp":"2024-04-01 10:00:00","market_state":"UD",
			"query_params":{"ticker":"HPG","month_year":"2024-03"},"available_models":["LSTM","RF"],"total_models":2,
			"overall_statistics":{"total_predictions":2,"correct_predictions":1,"accuracy":50.0},
			"model_statistics":{"RF":{"total_predictions":1,"correct_predictions":1,"accuracy":100.0,"dates":["2024-03"],"total_dates":1}},
			"data":[{"Ticker":"HPG","Model":"RF","Month-Year":"2024-03","Index":12,"Actual":1,"Prediction":1,"Prob_Class_0":0.2,"Prob_Class_1":0.8,"Correct":1}]}`))
	})

	result, err := client.StockAllModels(context.Background(), "HPG", UpDown, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"LSTM", "RF"}, result.AvailableModels)
	assert.InDelta(t, 50.0, result.OverallStatistics.Accuracy, 1e-9)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "2024-03", result.Data[0].MonthYear)
	assert.InDelta(t, 0.8, result.Data[0].ProbClass1, 1e-9)
	assert.Equal(t, 1, result.ModelStatistics["RF"].CorrectPredictions)
}

func TestMarketStateValidatedLocally(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx := context.Background()

	_, err := client.StockAllModels(ctx, "HPG", MarketState("XX"), "")
	assert.ErrorIs(t, err, ErrInvalidMarketState)
	_, err = client.LatestDateAll(ctx, MarketState("bb"))
	assert.ErrorIs(t, err, ErrInvalidMarketState)
	_, err = client.AvailableFilters(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidMarketState)
}

func TestAvailableFiltersAndLatest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/available-filters":
			assert.Equal(t, "UD", r.URL.Query().Get("data_type"))
			_, _ = w.Write([]byte(`{"data_type":"UD","tickers":["ACB","HPG"],"models":["RF"],"month_years":["2024-02","2024-03"]}`))
		case "/latest-date-all-ticker-data":
			_, _ = w.Write([]byte(`{"status":"success","market_state":"UD","total_tickers":1,"data":[
				{"ticker":"ACB","latest_date":"2024-03","models":[{"model_name":"RF","index":3,"prediction":0,"Prob_Class_1":0.3,"Prob_Class_0":0.7}]}]}`))
		}
	})

	filters, err := client.AvailableFilters(context.Background(), UpDown)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACB", "HPG"}, filters.Tickers)

	latest, err := client.LatestDateAll(context.Background(), UpDown)
	require.NoError(t, err)
	require.Len(t, latest.Data, 1)
	require.Len(t, latest.Data[0].Models, 1)
	assert.Equal(t, 0, *latest.Data[0].Models[0].Prediction)
}

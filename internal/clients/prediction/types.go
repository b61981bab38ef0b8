package prediction

// Model selects a factor regression.
type Model string

// Factor models exposed by the factor service
const (
	OneFactor   Model = "1factor"
	ThreeFactor Model = "3factors"
	FourFactor  Model = "4factors"
	FiveFactor  Model = "5factors"
)

// Valid reports whether m is a known factor model.
func (m Model) Valid() bool {
	switch m {
	case OneFactor, ThreeFactor, FourFactor, FiveFactor:
		return true
	}
	return false
}

// MarketState selects the prediction dataset: bull/bear (BB) or up/down (UD).
type MarketState string

// Market states
const (
	BullBear MarketState = "BB"
	UpDown   MarketState = "UD"
)

// Valid reports whether s is BB or UD.
func (s MarketState) Valid() bool {
	return s == BullBear || s == UpDown
}

// Regression models for AIPredict
const (
	ModelLinear  = "linear"
	ModelXGBoost = "xgboost"
)

// DefaultInvestment is the notional (VND) used when none is supplied.
const DefaultInvestment = 1_000_000_000

// DefaultFactors returns every factor the service knows.
func DefaultFactors() []string {
	return []string{"mkt", "size", "value", "mom", "inv", "profit"}
}

// PortfolioInput is the request body shared by the factor endpoints.
type PortfolioInput struct {
	Tickers     []string  `json:"tickers" validate:"required,min=1,dive,required"`
	Weights     []float64 `json:"weights,omitempty" validate:"omitempty,dive,gte=0"`
	Investment  float64   `json:"investment,omitempty" validate:"gte=0"`
	Factors     []string  `json:"factors,omitempty" validate:"omitempty,dive,oneof=mkt size value mom inv profit"`
	ModelChoice string    `json:"model_choice,omitempty" validate:"omitempty,oneof=linear xgboost"`
}

// FactorResult is the output of a factor regression.
type FactorResult struct {
	Alpha       float64             `json:"alpha"`
	AlphaPValue *float64            `json:"alpha_p_value"`
	RSquared    float64             `json:"r_squared"`
	Beta        map[string]float64  `json:"beta"`
	BetaPValues map[string]*float64 `json:"beta_p_values"`
	ResidualStd float64             `json:"residual_std"`
	NSamples    int                 `json:"n_samples"`
}

// AIPrediction is the output of the return forecast.
type AIPrediction struct {
	Model                 string              `json:"model"`
	FactorsUsed           []string            `json:"factors_used"`
	MSE                   float64             `json:"mse"`
	AlphaPValue           *float64            `json:"alpha_p_value"`
	FactorPValues         map[string]*float64 `json:"factor_p_values"`
	NextMonthPct          float64             `json:"next_month_prediction (%)"`
	NextYearPct           float64             `json:"next_year_estimate (%)"`
	Investment            float64             `json:"investment"`
	ExpectedGainNextMonth float64             `json:"expected_gain_next_month (VND)"`
	ExpectedGainNextYear  float64             `json:"expected_gain_next_year (VND)"`
}

// ModelRecord is one monthly classification by one model.
type ModelRecord struct {
	Ticker     string  `json:"Ticker"`
	Model      string  `json:"Model"`
	MonthYear  string  `json:"Month-Year"`
	Index      int     `json:"Index"`
	Actual     int     `json:"Actual"`
	Prediction int     `json:"Prediction"`
	ProbClass0 float64 `json:"Prob_Class_0"`
	ProbClass1 float64 `json:"Prob_Class_1"`
	Correct    int     `json:"Correct"`
}

// Statistics summarizes prediction accuracy.
type Statistics struct {
	TotalPredictions   int      `json:"total_predictions"`
	CorrectPredictions int      `json:"correct_predictions"`
	Accuracy           float64  `json:"accuracy"`
	Dates              []string `json:"dates,omitempty"`
	TotalDates         int      `json:"total_dates,omitempty"`
}

// StockModels is every model's history for one ticker.
type StockModels struct {
	Status            string                `json:"status"`
	Timestamp         string                `json:"timestamp,omitempty"`
	MarketState       string                `json:"market_state,omitempty"`
	QueryParams       map[string]string     `json:"query_params,omitempty"`
	AvailableModels   []string              `json:"available_models"`
	TotalModels       int                   `json:"total_models"`
	OverallStatistics Statistics            `json:"overall_statistics"`
	ModelStatistics   map[string]Statistics `json:"model_statistics"`
	Data              []ModelRecord         `json:"data"`
}

// Empty reports whether the ticker had no predictions.
func (s *StockModels) Empty() bool {
	return len(s.Data) == 0
}

// LatestModel is one model's most recent call for a ticker.
type LatestModel struct {
	ModelName  string   `json:"model_name"`
	Index      *int     `json:"index"`
	Prediction *int     `json:"prediction"`
	ProbClass1 *float64 `json:"Prob_Class_1"`
	ProbClass0 *float64 `json:"Prob_Class_0"`
}

// LatestTicker groups the latest predictions of a ticker.
type LatestTicker struct {
	Ticker     string        `json:"ticker"`
	LatestDate string        `json:"latest_date"`
	Models     []LatestModel `json:"models"`
}

// LatestAll is the latest prediction for every ticker.
type LatestAll struct {
	Status       string         `json:"status"`
	Timestamp    string         `json:"timestamp,omitempty"`
	MarketState  string         `json:"market_state,omitempty"`
	TotalTickers int            `json:"total_tickers"`
	Data         []LatestTicker `json:"data"`
}

// Filters lists the values available for querying a dataset.
type Filters struct {
	DataType   string   `json:"data_type"`
	Tickers    []string `json:"tickers"`
	Models     []string `json:"models"`
	MonthYears []string `json:"month_years"`
}

package ssi

import "time"

// Page is one page of normalized records.
type Page[T any] struct {
	Items     []T `json:"items"`
	Total     int `json:"total"`
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
}

// Security is a listed instrument.
type Security struct {
	Symbol string `json:"symbol"`
	Market string `json:"market"`
	Name   string `json:"name"`
	NameEn string `json:"name_en,omitempty"`
}

// SecurityDetail is the static reference data for one instrument.
type SecurityDetail struct {
	Symbol       string  `json:"symbol"`
	ISIN         string  `json:"isin,omitempty"`
	Name         string  `json:"name"`
	NameEn       string  `json:"name_en,omitempty"`
	SecType      string  `json:"sec_type,omitempty"`
	Exchange     string  `json:"exchange,omitempty"`
	Issuer       string  `json:"issuer,omitempty"`
	LotSize      float64 `json:"lot_size,omitempty"`
	ListedShares float64 `json:"listed_shares,omitempty"`
}

// Index is an entry of the index list.
type Index struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
}

// IndexComponents lists the constituents of an index.
type IndexComponents struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Exchange string   `json:"exchange,omitempty"`
	Symbols  []string `json:"symbols"`
}

// Bar is one OHLCV candle.
type Bar struct {
	Symbol string    `json:"symbol"`
	Market string    `json:"market,omitempty"`
	Date   time.Time `json:"date"`
	Time   string    `json:"time,omitempty"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Value  float64   `json:"value,omitempty"`
}

// IndexBar is one daily index observation.
type IndexBar struct {
	IndexID       string    `json:"index_id"`
	Date          time.Time `json:"date"`
	Value         float64   `json:"value"`
	Change        float64   `json:"change"`
	RatioChange   float64   `json:"ratio_change"`
	TotalMatchVol float64   `json:"total_match_vol"`
	TotalMatchVal float64   `json:"total_match_val"`
	Advances      int       `json:"advances"`
	Declines      int       `json:"declines"`
	NoChanges     int       `json:"no_changes"`
}

// DailyPrice is one day of price and flow statistics for a symbol.
type DailyPrice struct {
	Symbol             string    `json:"symbol"`
	Date               time.Time `json:"date"`
	RefPrice           float64   `json:"ref_price"`
	CeilingPrice       float64   `json:"ceiling_price"`
	FloorPrice         float64   `json:"floor_price"`
	OpenPrice          float64   `json:"open_price"`
	HighPrice          float64   `json:"high_price"`
	LowPrice           float64   `json:"low_price"`
	ClosePrice         float64   `json:"close_price"`
	AdjustedClose      float64   `json:"adjusted_close"`
	PriceChange        float64   `json:"price_change"`
	PercentChange      float64   `json:"percent_change"`
	TotalMatchVol      float64   `json:"total_match_vol"`
	TotalTradedVol     float64   `json:"total_traded_vol"`
	TotalTradedValue   float64   `json:"total_traded_value"`
	ForeignBuyVol      float64   `json:"foreign_buy_vol"`
	ForeignSellVol     float64   `json:"foreign_sell_vol"`
	ForeignCurrentRoom float64   `json:"foreign_current_room"`
	NetBuySellVol      float64   `json:"net_buy_sell_vol"`
}

// SecuritiesQuery selects a page of the securities list.
type SecuritiesQuery struct {
	Market    string
	PageIndex int
	PageSize  int
}

// OHLCQuery selects candles for one symbol.
type OHLCQuery struct {
	Symbol    string
	From      time.Time
	To        time.Time
	PageIndex int
	PageSize  int
	Ascending bool
}

// IndexQuery selects daily index values.
type IndexQuery struct {
	IndexID   string
	From      time.Time
	To        time.Time
	PageIndex int
	PageSize  int
}

// StockPriceQuery selects daily stock prices.
type StockPriceQuery struct {
	Symbol    string
	Market    string
	From      time.Time
	To        time.Time
	PageIndex int
	PageSize  int
}

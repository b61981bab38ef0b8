package ssi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Field aliases seen across FastConnect endpoints and the CSV exports built
// from them. The first entry is the canonical FastConnect name.
var (
	symbolKeys      = []string{"Symbol", "StockSymbol", "Ticker", "Code"}
	marketKeys      = []string{"Market", "MarketId", "Exchange"}
	dateKeys        = []string{"TradingDate", "Date", "Time", "ReportDate"}
	openKeys        = []string{"Open", "OpenPrice"}
	highKeys        = []string{"High", "HighPrice", "HighestPrice"}
	lowKeys         = []string{"Low", "LowPrice", "LowestPrice"}
	closeKeys       = []string{"Close", "ClosePrice"}
	volumeKeys      = []string{"Volume", "TradingVolume", "TotalTradedVol", "TotalMatchVol", "TotalVol"}
	valueKeys       = []string{"Value", "TotalTradedValue", "TotalMatchVal", "TotalVal"}
	nameKeys        = []string{"StockName", "SymbolName", "IndexName", "Name"}
	nameEnKeys      = []string{"StockEnName", "SymbolEngName", "NameEn"}
	indexCodeKeys   = []string{"IndexCode", "IndexId", "IndexID"}
	componentsKeys  = []string{"IndexComponent", "IndexComponents", "Components"}
	foreignBuyKeys  = []string{"ForeignBuyVolTotal", "ForeignBuyVol"}
	foreignSellKeys = []string{"ForeignSellVolTotal", "ForeignSellVol"}
)

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// lookup finds the first alias present in m. Exact names are tried first,
// then a case-insensitive match, so "close", "Close" and "CLOSE" all resolve.
func lookup(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}
	for k, v := range m {
		if v == nil {
			continue
		}
		for _, key := range keys {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
	}
	return nil, false
}

// getString extracts a string, formatting numbers when needed.
func getString(m map[string]interface{}, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// getFloat64 extracts a number. FastConnect sends most numerics as strings,
// sometimes with thousands separators.
func getFloat64(m map[string]interface{}, keys ...string) float64 {
	v, ok := lookup(m, keys...)
	if !ok {
		return 0
	}
	return toFloat64(v)
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func getInt(m map[string]interface{}, keys ...string) int {
	return int(getFloat64(m, keys...))
}

// getDate parses the first date-bearing alias. Unparseable values yield the zero time.
func getDate(m map[string]interface{}, keys ...string) time.Time {
	v, ok := lookup(m, keys...)
	if !ok {
		return time.Time{}
	}
	switch val := v.(type) {
	case string:
		return ParseDate(val)
	case float64:
		// Epoch seconds or milliseconds
		if val > 1e12 {
			return time.UnixMilli(int64(val)).UTC()
		}
		return time.Unix(int64(val), 0).UTC()
	}
	return time.Time{}
}

// ParseDate accepts dd/mm/yyyy, ISO dates and a few timestamp variants.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate renders a date the way FastConnect expects (dd/mm/yyyy).
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func transformSecurity(m map[string]interface{}) Security {
	return Security{
		Symbol: strings.ToUpper(getString(m, symbolKeys...)),
		Market: strings.ToUpper(getString(m, marketKeys...)),
		Name:   getString(m, nameKeys...),
		NameEn: getString(m, nameEnKeys...),
	}
}

// transformSecurityDetails flattens the RepeatedInfo blocks of SecuritiesDetails.
func transformSecurityDetails(records []map[string]interface{}) []SecurityDetail {
	details := make([]SecurityDetail, 0, len(records))
	for _, record := range records {
		items := []map[string]interface{}{record}
		if nested, ok := lookup(record, "RepeatedInfo"); ok {
			items = toRecordList(nested)
		}
		for _, item := range items {
			details = append(details, SecurityDetail{
				Symbol:       strings.ToUpper(getString(item, symbolKeys...)),
				ISIN:         getString(item, "Isin", "ISIN"),
				Name:         getString(item, nameKeys...),
				NameEn:       getString(item, nameEnKeys...),
				SecType:      getString(item, "SecType"),
				Exchange:     getString(item, "Exchange", "MarketId"),
				Issuer:       getString(item, "Issuer"),
				LotSize:      getFloat64(item, "LotSize"),
				ListedShares: getFloat64(item, "ListedShare", "ListedShares"),
			})
		}
	}
	return details
}

func transformIndex(m map[string]interface{}) Index {
	return Index{
		Code:     strings.ToUpper(getString(m, indexCodeKeys...)),
		Name:     getString(m, "IndexName", "Name"),
		Exchange: getString(m, "Exchange"),
	}
}

func transformIndexComponents(m map[string]interface{}) IndexComponents {
	ic := IndexComponents{
		Code:     strings.ToUpper(getString(m, indexCodeKeys...)),
		Name:     getString(m, "IndexName", "Name"),
		Exchange: getString(m, "Exchange"),
		Symbols:  []string{},
	}
	if nested, ok := lookup(m, componentsKeys...); ok {
		for _, item := range toRecordList(nested) {
			if symbol := strings.ToUpper(getString(item, symbolKeys...)); symbol != "" {
				ic.Symbols = append(ic.Symbols, symbol)
			}
		}
	}
	return ic
}

func transformBar(m map[string]interface{}) Bar {
	return Bar{
		Symbol: strings.ToUpper(getString(m, symbolKeys...)),
		Market: strings.ToUpper(getString(m, "Market")),
		Date:   getDate(m, dateKeys...),
		Time:   getString(m, "Time"),
		Open:   getFloat64(m, openKeys...),
		High:   getFloat64(m, highKeys...),
		Low:    getFloat64(m, lowKeys...),
		Close:  getFloat64(m, closeKeys...),
		Volume: getFloat64(m, volumeKeys...),
		Value:  getFloat64(m, valueKeys...),
	}
}

func transformIndexBar(m map[string]interface{}) IndexBar {
	return IndexBar{
		IndexID:       strings.ToUpper(getString(m, indexCodeKeys...)),
		Date:          getDate(m, "TradingDate", "Date"),
		Value:         getFloat64(m, "IndexValue", "Value", "Close"),
		Change:        getFloat64(m, "Change"),
		RatioChange:   getFloat64(m, "RatioChange"),
		TotalMatchVol: getFloat64(m, "TotalMatchVol"),
		TotalMatchVal: getFloat64(m, "TotalMatchVal"),
		Advances:      getInt(m, "Advances"),
		Declines:      getInt(m, "Declines"),
		NoChanges:     getInt(m, "NoChanges"),
	}
}

func transformDailyPrice(m map[string]interface{}) DailyPrice {
	return DailyPrice{
		Symbol:             strings.ToUpper(getString(m, symbolKeys...)),
		Date:               getDate(m, "TradingDate", "Date"),
		RefPrice:           getFloat64(m, "RefPrice"),
		CeilingPrice:       getFloat64(m, "CeilingPrice"),
		FloorPrice:         getFloat64(m, "FloorPrice"),
		OpenPrice:          getFloat64(m, "OpenPrice", "Open"),
		HighPrice:          getFloat64(m, "HighestPrice", "HighPrice", "High"),
		LowPrice:           getFloat64(m, "LowestPrice", "LowPrice", "Low"),
		ClosePrice:         getFloat64(m, "ClosePrice", "Close"),
		AdjustedClose:      getFloat64(m, "ClosePriceAdjusted", "AdjClose"),
		PriceChange:        getFloat64(m, "PriceChange"),
		PercentChange:      getFloat64(m, "PerPriceChange", "PercentChange"),
		TotalMatchVol:      getFloat64(m, "TotalMatchVol"),
		TotalTradedVol:     getFloat64(m, "TotalTradedVol", "Volume"),
		TotalTradedValue:   getFloat64(m, "TotalTradedValue", "Value"),
		ForeignBuyVol:      getFloat64(m, foreignBuyKeys...),
		ForeignSellVol:     getFloat64(m, foreignSellKeys...),
		ForeignCurrentRoom: getFloat64(m, "ForeignCurrentRoom"),
		NetBuySellVol:      getFloat64(m, "NetBuySellVol"),
	}
}

func toRecordList(v interface{}) []map[string]interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(val))
		for _, item := range val {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]interface{}:
		return []map[string]interface{}{val}
	}
	return nil
}

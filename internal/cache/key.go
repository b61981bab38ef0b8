package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// BuildKey returns the canonical signature of a request:
//
//	METHOD endpoint?q1=v1&q2=v2#b1=v1&b2=v2
//
// Query and body parameters are sorted by name so logically identical
// requests always produce the same key regardless of map iteration order.
func BuildKey(method, endpoint string, query, body map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(endpoint)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(encodeParams(query))
	}
	if len(body) > 0 {
		b.WriteByte('#')
		b.WriteString(encodeParams(body))
	}
	return b.String()
}

// ScopedKey prefixes key with the upstream it was fetched from. Identical
// requests to different upstreams sharing one cache get different keys.
func ScopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + " " + key
}

func encodeParams(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(formatValue(params[name])))
	}
	return strings.Join(parts, "&")
}

// formatValue renders scalars with fmt and composite values as JSON.
// encoding/json sorts map keys, which keeps nested maps deterministic.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

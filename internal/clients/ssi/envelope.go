package ssi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
)

// Envelope is the wrapper around every FastConnect response:
// {status, message, data|dataList, totalRecord}.
type Envelope struct {
	Status      interface{}     `json:"status"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	DataList    json.RawMessage `json:"dataList"`
	TotalRecord flexInt         `json:"totalRecord"`
}

// APIError is a well-formed envelope with a non-success status.
type APIError struct {
	Status  interface{}
	Message string
	Kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ssi: status %v: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// Payload returns whichever of data/dataList carries content.
func (e *Envelope) Payload() json.RawMessage {
	if present(e.Data) {
		return e.Data
	}
	if present(e.DataList) {
		return e.DataList
	}
	return nil
}

// Records decodes the payload as a list of loosely-typed records. A single
// object payload becomes a one-element list.
func (e *Envelope) Records() ([]map[string]interface{}, error) {
	payload := e.Payload()
	if payload == nil {
		return []map[string]interface{}{}, nil
	}

	switch payload[0] {
	case '[':
		var records []map[string]interface{}
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		return records, nil
	case '{':
		var record map[string]interface{}
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		return []map[string]interface{}{record}, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %q", payload[0])
	}
}

func decodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: not an envelope: %v", cachedhttp.ErrInvalidResponse, err)
	}
	return &env, nil
}

// validateEnvelope rejects bodies that are not success envelopes so they are
// never cached.
func validateEnvelope(body []byte) error {
	if len(body) == 0 || body[0] != '{' {
		return errors.New("envelope must be a JSON object")
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return err
	}
	if env.Status == nil {
		return errors.New("envelope has no status")
	}
	if !cachedhttp.IsSuccessStatus(env.Status) {
		return &APIError{Status: env.Status, Message: env.Message, Kind: kindForEnvelopeStatus(env.Status)}
	}
	if !hasKey(body, "data") && !hasKey(body, "dataList") {
		return errors.New("envelope has neither data nor dataList")
	}
	return nil
}

func kindForEnvelopeStatus(status interface{}) error {
	switch s := status.(type) {
	case float64:
		if s == 401 || s == 403 {
			return cachedhttp.ErrUnauthorized
		}
		if s == 429 {
			return cachedhttp.ErrRateLimited
		}
	case string:
		switch strings.ToLower(s) {
		case "401", "403", "unauthorized", "forbidden":
			return cachedhttp.ErrUnauthorized
		case "429":
			return cachedhttp.ErrRateLimited
		}
	}
	return cachedhttp.ErrUnexpectedStatus
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func hasKey(body []byte, key string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe[key]
	return ok
}

// flexInt accepts numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexInt(int(n))
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
	"github.com/aristath/vnmarket/internal/clients/prediction"
	"github.com/aristath/vnmarket/internal/clients/ssi"
)

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "vnmarket",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps err onto a status code and writes it as JSON.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	body := errorResponse{Error: err.Error(), Kind: kind}

	if status == http.StatusTooManyRequests {
		wait := cachedhttp.RetryAfter(err, 0)
		body.RetryAfter = int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	event := s.log.Warn()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("kind", kind).
		Msg("Request failed")

	s.writeJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, prediction.ErrInvalidModel),
		errors.Is(err, prediction.ErrInvalidMarketState),
		errors.Is(err, prediction.ErrEmptyPortfolio),
		errors.Is(err, prediction.ErrInvalidPortfolio):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, batch.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, batch.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	case errors.Is(err, cachedhttp.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, cachedhttp.ErrUnauthorized), errors.Is(err, ssi.ErrMissingCredentials):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, cachedhttp.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, cachedhttp.ErrNetworkFailure):
		return http.StatusBadGateway, "network_failure"
	case errors.Is(err, cachedhttp.ErrInvalidResponse):
		return http.StatusBadGateway, "invalid_response"
	case errors.Is(err, cachedhttp.ErrUnexpectedStatus):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON decodes the request body into v and validates it.
func (s *Server) decodeJSON(r *http.Request, v interface{}) error {
	if err := s.decodeBody(r, v); err != nil {
		return err
	}
	return s.validateStruct(v)
}

func (s *Server) decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) validateStruct(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// queryInt reads an optional positive integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	return n, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return b, nil
}

// queryDate reads an optional date in dd/mm/yyyy or ISO form.
func queryDate(r *http.Request, name string) (time.Time, error) {
	return parseDate(name, r.URL.Query().Get(name))
}

func parseDate(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t := ssi.ParseDate(raw)
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a date", errBadRequest, name, raw)
	}
	return t, nil
}

// dateRange reads the from/to query parameters.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// paging reads pageIndex/pageSize; zero values select the client defaults.
func paging(r *http.Request) (int, int, error) {
	pageIndex, err := queryInt(r, "pageIndex", 0)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		return 0, 0, err
	}
	return pageIndex, pageSize, nil
}

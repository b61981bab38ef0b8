package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/vnmarket/internal/clients/prediction"
)

func marketState(r *http.Request) prediction.MarketState {
	return prediction.MarketState(strings.ToUpper(queryOr(r, "market_state", string(prediction.BullBear))))
}

// handleStockPredictions handles GET /api/predictions/{ticker}
func (s *Server) handleStockPredictions(w http.ResponseWriter, r *http.Request) {
	result, err := s.container.Prediction.StockAllModels(r.Context(),
		chi.URLParam(r, "ticker"),
		marketState(r),
		strings.TrimSpace(r.URL.Query().Get("month_year")),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleLatestPredictions handles GET /api/predictions/latest
func (s *Server) handleLatestPredictions(w http.ResponseWriter, r *http.Request) {
	result, err := s.container.Prediction.LatestDateAll(r.Context(), marketState(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handlePredictionFilters handles GET /api/predictions/filters
func (s *Server) handlePredictionFilters(w http.ResponseWriter, r *http.Request) {
	result, err := s.container.Prediction.AvailableFilters(r.Context(), marketState(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/vnmarket/internal/clients/prediction"
	"github.com/aristath/vnmarket/internal/portfolio"
)

// WeightsRequest is the body of POST /api/portfolio/weights.
type WeightsRequest struct {
	Holdings []portfolio.Holding `json:"holdings" validate:"required,min=1,dive"`
}

// WeightsResponse reports recomputed weights.
type WeightsResponse struct {
	Holdings  []portfolio.Holding `json:"holdings"`
	Total     float64             `json:"total"`
	Formatted map[string]string   `json:"formatted"`
}

// AnalysisRequest is the body of the factor and AI endpoints. Either tickers
// (with optional weights) or holdings must be given; holdings take precedence
// and supply the weights.
type AnalysisRequest struct {
	prediction.PortfolioInput
	Holdings []portfolio.Holding `json:"holdings,omitempty"`
}

// handlePortfolioWeights handles POST /api/portfolio/weights
func (s *Server) handlePortfolioWeights(w http.ResponseWriter, r *http.Request) {
	var req WeightsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := portfolio.New(req.Holdings...)

	s.writeJSON(w, http.StatusOK, WeightsResponse{
		Holdings:  p.Holdings,
		Total:     p.Total(),
		Formatted: p.FormattedWeights(),
	})
}

// handleFactorModel handles POST /api/portfolio/factors/{model}
func (s *Server) handleFactorModel(w http.ResponseWriter, r *http.Request) {
	model := prediction.Model(strings.ToLower(chi.URLParam(r, "model")))
	if !model.Valid() {
		s.writeError(w, r, prediction.ErrInvalidModel)
		return
	}

	input, err := s.analysisInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.container.Prediction.FactorModel(r.Context(), model, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleAIPredict handles POST /api/portfolio/ai-predict
func (s *Server) handleAIPredict(w http.ResponseWriter, r *http.Request) {
	input, err := s.analysisInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.container.Prediction.AIPredict(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) analysisInput(r *http.Request) (prediction.PortfolioInput, error) {
	var req AnalysisRequest
	if err := s.decodeBody(r, &req); err != nil {
		return prediction.PortfolioInput{}, err
	}

	input := req.PortfolioInput
	if len(req.Holdings) > 0 {
		for _, h := range req.Holdings {
			if err := s.validateStruct(h); err != nil {
				return prediction.PortfolioInput{}, err
			}
		}
		fromHoldings := portfolio.New(req.Holdings...).FactorInput(req.Investment)
		input.Tickers = fromHoldings.Tickers
		input.Weights = fromHoldings.Weights
		input.Investment = fromHoldings.Investment
	}

	if err := s.validateStruct(input); err != nil {
		return prediction.PortfolioInput{}, err
	}
	return input, nil
}

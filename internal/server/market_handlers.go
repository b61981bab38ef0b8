package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/internal/scoring"
)

// technicalsPageSize covers a year of trading days in one request.
const technicalsPageSize = 1000

// ensureLogin obtains the FastConnect token on first use.
func (s *Server) ensureLogin(ctx context.Context) error {
	return s.container.SSI.EnsureLogin(ctx)
}

// handleSecurities handles GET /api/market/securities
func (s *Server) handleSecurities(w http.ResponseWriter, r *http.Request) {
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.container.SSI.Securities(r.Context(), ssi.SecuritiesQuery{
		Market:    queryOr(r, "market", "HOSE"),
		PageIndex: pageIndex,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleSecurityDetails handles GET /api/market/securities/{symbol}
func (s *Server) handleSecurityDetails(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	details, err := s.container.SSI.SecuritiesDetails(r.Context(), queryOr(r, "market", "HOSE"), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, details)
}

// handleIndexList handles GET /api/market/indices
func (s *Server) handleIndexList(w http.ResponseWriter, r *http.Request) {
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.container.SSI.IndexList(r.Context(), queryOr(r, "exchange", "HOSE"), pageIndex, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleIndexComponents handles GET /api/market/indices/{index}/components
func (s *Server) handleIndexComponents(w http.ResponseWriter, r *http.Request) {
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	components, err := s.container.SSI.IndexComponents(r.Context(), chi.URLParam(r, "index"), pageIndex, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, components)
}

// handleDailyIndex handles GET /api/market/indices/{index}/daily
func (s *Server) handleDailyIndex(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.container.SSI.DailyIndex(r.Context(), ssi.IndexQuery{
		IndexID:   chi.URLParam(r, "index"),
		From:      from,
		To:        to,
		PageIndex: pageIndex,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleOHLC handles GET /api/market/ohlc/{symbol}?from&to&interval=daily|intraday
func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ascending, err := queryBool(r, "ascending")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fetch := s.container.SSI.DailyOhlc
	switch strings.ToLower(queryOr(r, "interval", "daily")) {
	case "daily":
	case "intraday":
		fetch = s.container.SSI.IntradayOhlc
	default:
		s.writeError(w, r, badRequest("interval must be daily or intraday"))
		return
	}

	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := fetch(r.Context(), ssi.OHLCQuery{
		Symbol:    chi.URLParam(r, "symbol"),
		From:      from,
		To:        to,
		PageIndex: pageIndex,
		PageSize:  pageSize,
		Ascending: ascending,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleDailyPrices handles GET /api/market/prices/{symbol}
func (s *Server) handleDailyPrices(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageIndex, pageSize, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.container.SSI.DailyStockPrice(r.Context(), ssi.StockPriceQuery{
		Symbol:    chi.URLParam(r, "symbol"),
		Market:    r.URL.Query().Get("market"),
		From:      from,
		To:        to,
		PageIndex: pageIndex,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleTechnicals handles GET /api/market/technicals/{symbol}
func (s *Server) handleTechnicals(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ensureLogin(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	page, err := s.container.SSI.DailyOhlc(r.Context(), ssi.OHLCQuery{
		Symbol:    symbol,
		From:      from,
		To:        to,
		PageIndex: 1,
		PageSize:  technicalsPageSize,
		Ascending: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scoring.ComputeTechnicals(symbol, page.Items))
}

func queryOr(r *http.Request, name, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return def
}

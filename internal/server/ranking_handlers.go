package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/aristath/vnmarket/internal/scoring"
)

// RankingsResponse is the body of GET /api/rankings.
type RankingsResponse struct {
	Market      string            `json:"market"`
	Source      string            `json:"source"`
	GeneratedAt time.Time         `json:"generated_at"`
	Count       int               `json:"count"`
	Total       int               `json:"total"`
	Failed      []string          `json:"failed,omitempty"`
	Rankings    []scoring.Ranking `json:"rankings"`
}

// handleRankings handles GET /api/rankings?top=N&drop_degenerate=true
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	rankings, snapshot, ok := s.selectRankings(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, RankingsResponse{
		Market:      snapshot.Market,
		Source:      snapshot.Source,
		GeneratedAt: snapshot.GeneratedAt,
		Count:       len(rankings),
		Total:       len(snapshot.All),
		Failed:      snapshot.Failed,
		Rankings:    rankings,
	})
}

// handleRankingsCSV handles GET /api/rankings/csv with the same filters.
func (s *Server) handleRankingsCSV(w http.ResponseWriter, r *http.Request) {
	rankings, _, ok := s.selectRankings(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := scoring.WriteCSV(&buf, rankings); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rankings.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleRefreshRankings handles POST /api/rankings/refresh?debounce=
func (s *Server) handleRefreshRankings(w http.ResponseWriter, r *http.Request) {
	debounce, err := queryBool(r, "debounce")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if debounce {
		s.container.RankingJob.Trigger()
		s.writeJSON(w, http.StatusAccepted, s.container.RankingJob.Controller().Status())
		return
	}

	if err := s.container.RankingJob.Start(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.container.RankingJob.Controller().Status())
}

func (s *Server) selectRankings(w http.ResponseWriter, r *http.Request) ([]scoring.Ranking, *scoring.Snapshot, bool) {
	top, err := queryInt(r, "top", 0)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	dropDegenerate, err := queryBool(r, "drop_degenerate")
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}

	snapshot, ok := s.container.Ranker.Latest()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no ranking available yet", Kind: "not_found"})
		return nil, nil, false
	}

	rankings := snapshot.All
	if dropDegenerate {
		rankings = scoring.DropDegenerate(rankings)
	}
	if top > 0 {
		rankings = scoring.Top(rankings, top)
	}
	if rankings == nil {
		rankings = []scoring.Ranking{}
	}
	return rankings, snapshot, true
}

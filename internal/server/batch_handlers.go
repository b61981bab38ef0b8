package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/clients/ssi"
)

const (
	// batchTimeout bounds one background batch; at 1s pacing it covers ~1800 symbols.
	batchTimeout = 30 * time.Minute

	wsWriteTimeout = 5 * time.Second
)

// BatchOHLCRequest is the body of POST /api/batch/ohlc.
type BatchOHLCRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=2000"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
}

// progressMessage is one frame on the progress websocket.
type progressMessage struct {
	Type     string          `json:"type"` // progress, done
	Progress *batch.Progress `json:"progress,omitempty"`
	Job      *batch.Job      `json:"job,omitempty"`
}

// handleBatchOHLC handles POST /api/batch/ohlc. The batch runs in the
// background; the response carries the job to poll or subscribe to.
func (s *Server) handleBatchOHLC(w http.ResponseWriter, r *http.Request) {
	var req BatchOHLCRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := parseDate("from", req.From)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseDate("to", req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(batch.Filter(req.Symbols)) == 0 {
		s.writeError(w, r, badRequest("symbols contains no usable identifiers"))
		return
	}

	controller := s.container.BatchController
	if controller.State() == batch.StateFetching {
		s.writeError(w, r, batch.ErrBusy)
		return
	}

	jobs := s.container.Jobs
	job := jobs.Create("ohlc", req.Symbols)

	fetch := func(ctx context.Context, symbol string) ([]ssi.Bar, error) {
		page, err := s.container.SSI.DailyOhlc(ctx, ssi.OHLCQuery{
			Symbol:    symbol,
			From:      from,
			To:        to,
			PageIndex: 1,
			PageSize:  technicalsPageSize,
			Ascending: true,
		})
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	err = controller.Start(ctx, func(ctx context.Context) error {
		defer cancel()
		if err := s.ensureLogin(ctx); err != nil {
			jobs.Finish(job.ID, nil, err)
			return err
		}
		results, err := batch.Fetch(ctx, s.container.Orchestrator, job.Identifiers, fetch,
			batch.WithJobID(job.ID),
			batch.WithProgress(jobs.Record),
		)
		jobs.Finish(job.ID, results, err)
		return err
	})
	if err != nil {
		cancel()
		jobs.Finish(job.ID, nil, err)
		s.writeError(w, r, err)
		return
	}

	s.log.Info().Str("job_id", job.ID).Int("symbols", job.Total).Msg("Batch OHLC fetch started")
	s.writeJSON(w, http.StatusAccepted, job)
}

// handleListBatchJobs handles GET /api/batch
func (s *Server) handleListBatchJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"controller": s.container.BatchController.Status(),
		"jobs":       s.container.Jobs.List(),
	})
}

// handleGetBatchJob handles GET /api/batch/{id}
func (s *Server) handleGetBatchJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.container.Jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Kind: "not_found"})
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleBatchProgress handles GET /api/batch/{id}/progress (WebSocket).
// Recorded progress is replayed first, then live events follow until the
// job finishes, and a final "done" frame carries the finished job.
func (s *Server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, events, unsubscribe, ok := s.container.Jobs.Subscribe(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Kind: "not_found"})
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", id).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// Reads are only needed to process control frames from the client
	ctx := conn.CloseRead(r.Context())

	for i := range history {
		if err := s.writeFrame(ctx, conn, progressMessage{Type: "progress", Progress: &history[i]}); err != nil {
			return
		}
	}

	for events != nil {
		select {
		case <-ctx.Done():
			return
		case p, open := <-events:
			if !open {
				events = nil
				continue
			}
			if err := s.writeFrame(ctx, conn, progressMessage{Type: "progress", Progress: &p}); err != nil {
				return
			}
		}
	}

	job, _ := s.container.Jobs.Get(id)
	if err := s.writeFrame(ctx, conn, progressMessage{Type: "done", Job: &job}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "job finished")
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, msg progressMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	err := wsjson.Write(writeCtx, conn, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug().Err(err).Msg("Failed to write progress frame")
	}
	return err
}

// Package server exposes the scheduler over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/dates"
)

const maxBodyBytes = 8 << 20

// Options configures a Server. A zero RatePerSec disables rate limiting.
type Options struct {
	RatePerSec float64
	Burst      int
	Logger     zerolog.Logger
	// Today supplies the reference date when a request omits "today".
	Today func() dates.Date
}

// Server answers scheduling requests and remembers the most recent result.
type Server struct {
	mu   sync.RWMutex
	last *LastSchedule

	limiter *rate.Limiter
	log     zerolog.Logger
	today   func() dates.Date
}

// LastSchedule is the body of GET /api/schedule/last.
type LastSchedule struct {
	RequestID  string              `json:"requestId"`
	ComputedAt time.Time           `json:"computedAt"`
	Mode       cpm.Mode            `json:"mode"`
	Today      dates.Date          `json:"today"`
	Result     *cpm.ScheduleResult `json:"result"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// scheduleRequest shadows Today so an omitted date can be told apart from
// the zero date.
type scheduleRequest struct {
	cpm.ScheduleParams
	Today *dates.Date `json:"today"`
}

// New creates a Server.
func New(opts Options) *Server {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	today := opts.Today
	if today == nil {
		today = dates.Today
	}
	return &Server{
		limiter: rate.NewLimiter(limit, burst),
		log:     opts.Logger,
		today:   today,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		s.handleSchedule(w, r)
	})
	mux.HandleFunc("/api/schedule/last", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		s.handleLast(w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)
	log := s.log.With().Str("request_id", reqID).Logger()

	if !s.limiter.Allow() {
		log.Warn().Msg("rate limited")
		writeError(w, http.StatusTooManyRequests, reqID, "rate limit exceeded")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("bad request body")
		writeError(w, http.StatusBadRequest, reqID, "invalid JSON: "+err.Error())
		return
	}
	params := req.ScheduleParams
	if req.Today != nil {
		params.Today = *req.Today
	} else {
		params.Today = s.today()
	}

	result, err := cpm.Schedule(params)
	if err != nil {
		if cpm.IsValidation(err) {
			log.Debug().Err(err).Msg("invalid schedule params")
			writeError(w, http.StatusBadRequest, reqID, err.Error())
			return
		}
		log.Error().Err(err).Msg("schedule failed")
		writeError(w, http.StatusInternalServerError, reqID, "internal error")
		return
	}

	s.mu.Lock()
	s.last = &LastSchedule{
		RequestID:  reqID,
		ComputedAt: time.Now().UTC(),
		Mode:       params.Mode,
		Today:      params.Today,
		Result:     result,
	}
	s.mu.Unlock()

	log.Info().
		Str("mode", string(params.Mode)).
		Str("anchor", params.AnchorWorkItemID).
		Int("items", len(params.WorkItems)).
		Int("scheduled", len(result.ScheduledItems)).
		Int("warnings", len(result.Warnings)).
		Bool("cycle", result.HasCycle()).
		Dur("took", time.Since(start)).
		Msg("scheduled")

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeError(w, http.StatusNotFound, "", "no schedule computed yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reqID, msg string) {
	writeJSON(w, status, errorBody{Error: msg, RequestID: reqID})
}

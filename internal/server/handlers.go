package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/market-sync/internal/market"
)

// MaxMovers bounds the movers query parameter.
const MaxMovers = 50

// DataSourceHeader names the tier that served a read.
const DataSourceHeader = "X-Data-Source"

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, source := s.market.GetSnapshot(r.Context())
	w.Header().Set(DataSourceHeader, string(source))
	s.sendJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMovers(w http.ResponseWriter, r *http.Request) {
	n := market.DefaultMoversCount
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxMovers {
			s.sendError(w, http.StatusBadRequest, "n must be an integer between 1 and "+strconv.Itoa(MaxMovers))
			return
		}
		n = v
	}

	movers := s.market.GetMovers(r.Context(), n)
	w.Header().Set(DataSourceHeader, string(movers.Source))
	s.sendJSON(w, http.StatusOK, movers)
}

// handleSync runs one tick inline. A full provider retry cycle outlasts the
// server-wide WriteTimeout, so the route carries its own deadline: the tick is
// bounded by SyncTimeout and the response gets WriteTimeout on top of that.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SyncTimeout)
		defer cancel()

		deadline := time.Now().Add(s.cfg.SyncTimeout + s.cfg.WriteTimeout)
		if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
			s.logger.Debug("sync write deadline not extended", "err", err)
		}
	}

	result, err := s.trigger.RunNow(ctx)
	if err != nil {
		s.logger.Warn("manual sync failed", "run_id", result.RunID, "err", err)
		s.sendJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"run_id":  result.RunID,
			"error":   err.Error(),
		})
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.trigger.Status())
}

// handleHealth reports dependency checks and scheduler progress.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	for _, c := range s.checks {
		if err := c.pinger.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[c.name] = map[string]string{
				"status": "error",
				"error":  err.Error(),
			}
		} else {
			health.Components[c.name] = "connected"
		}
	}

	status := s.trigger.Status()
	sched := map[string]any{
		"enabled":         status.Enabled,
		"last_item_count": status.LastItemCount,
	}
	if status.LastSuccessAt != nil {
		sched["last_success_at"] = status.LastSuccessAt.Format(time.RFC3339)
	}
	if status.LastError != "" {
		sched["last_error"] = status.LastError
	}
	health.Components["scheduler"] = sched
	if status.LastSuccessAt == nil && health.Status == "healthy" {
		health.Status = "degraded"
	}

	if s.stream != nil {
		health.Components["stream"] = map[string]int{"clients": s.stream.Count()}
	}

	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, health)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", "err", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

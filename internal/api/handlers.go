package api

import (
	"net/http"
	"runtime"
	"strconv"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}

// handleGetConfig returns the options a client should prefill its form with.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	workers := s.app.Config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"version":  s.app.Version,
		"workers":  workers,
		"defaults": s.app.Config.DefaultOptions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetEvents lets clients without a websocket catch up on progress.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(w, r)
	if !ok {
		return
	}
	updates, next := s.app.Pump.Since(since)
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"events": updates,
		"next":   next,
	})
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(w, r)
	if !ok {
		return
	}
	lines, next := s.app.Logs.Since(int(since))
	if lines == nil {
		lines = []string{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"next":  next,
	})
}

func sinceParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, true
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		RespondWithError(w, http.StatusBadRequest, "Invalid since parameter")
		return 0, false
	}
	return since, true
}

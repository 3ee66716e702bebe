package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/marketcore/internal/scan"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.scan.Run(r.Context())
	if err != nil {
		if err == scan.ErrScanInProgress {
			writeError(w, http.StatusConflict, "CONFLICT", "a scan is already in progress")
			return
		}
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	result, ok := s.scan.LastResult()
	status := map[string]interface{}{"has_run": ok}
	if ok {
		status["last_result"] = result
	}
	if s.scheduler != nil {
		if last, found, err := s.scheduler.LastRun(r.Context(), "scan"); err == nil && found {
			status["last_scheduled_run"] = last
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePrewarmStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"has_run": false})
		return
	}
	last, found, err := s.scheduler.LastRun(r.Context(), "prewarm")
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"has_run": found, "last_run": last})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	result, ok := s.scan.LastResult()
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no scan has run yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshotTake(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot.TakeDaily(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshotBackfill(w http.ResponseWriter, r *http.Request) {
	count, err := s.snapshot.BackfillBenchmarks(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"backfilled": count})
}

func (s *Server) handleFXCheck(w http.ResponseWriter, r *http.Request) {
	evaluations, err := s.fx.Alert(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluations)
}

func (s *Server) handleResonance(w http.ResponseWriter, r *http.Request) {
	matches, err := s.resonance.PortfolioResonance(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleGreatMinds(w http.ResponseWriter, r *http.Request) {
	greatMinds, err := s.resonance.GreatMinds(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, greatMinds)
}

func (s *Server) handleResonanceForTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	matches, err := s.resonance.ResonanceForTicker(r.Context(), ticker)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.fabric.Stats()
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.fabric.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "at": time.Now().UTC().Format(time.RFC3339)})
}

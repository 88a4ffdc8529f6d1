package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondError(w, http.StatusNotImplemented, "pipeline not configured")
		return
	}
	if !s.busy.TryLock() {
		s.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.busy.Unlock()

	s.logger.Debug("run request")
	res, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("pipeline run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "indexer not configured")
		return
	}
	if !s.busy.TryLock() {
		s.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.busy.Unlock()

	stats, err := s.indexer.Build(r.Context())
	if err != nil {
		s.logger.Error("index build failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":   stats.Documents,
		"chunks":      stats.Chunks,
		"skipped":     stats.Skipped,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	if s.replier == nil {
		s.respondError(w, http.StatusNotImplemented, "reply engine not configured")
		return
	}
	publish := false
	if v := r.URL.Query().Get("publish"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "publish must be true or false")
			return
		}
		publish = b
	}
	if !s.busy.TryLock() {
		s.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.busy.Unlock()

	s.logger.Debug("replies request", zap.Bool("publish", publish))
	replies, err := s.replier.Run(r.Context(), publish)
	if err != nil {
		s.logger.Error("reply run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"publish": publish,
		"replies": replies,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondError(w, http.StatusNotImplemented, "status not configured")
		return
	}
	st, err := s.status()
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

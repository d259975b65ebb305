package server

import (
	"encoding/json"
	"net/http"
)

// Handler routes /ws, /healthz and, when configured, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

type healthResponse struct {
	Status string `json:"status"`
	Server Stats  `json:"server"`
	Race   any    `json:"race,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{Status: "ok", Server: s.GetStats()}
	if s.status != nil {
		resp.Race = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write health response")
	}
}

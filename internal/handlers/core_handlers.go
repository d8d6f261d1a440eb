package handlers

import (
	"net/http"
	"time"
)

// HandleHealth reports process liveness plus the current metrics
// snapshot.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"time":    time.Now().UTC().Format(time.RFC3339),
			"metrics": s.Metrics.Snapshot(),
		})
	}
}

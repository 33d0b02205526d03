package handlers

import (
	"context"
	"net/http"
)

// Pinger reports whether the database is reachable. Implemented by *database.Queries.
type Pinger interface {
	IsDatabaseRunning(ctx context.Context) (bool, error)
}

// HandleHealth is the liveness check (GET /health/live).
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleReadiness checks that the service can reach its database (GET /health/ready).
func HandleReadiness(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		running, err := db.IsDatabaseRunning(r.Context())
		if err != nil || !running {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

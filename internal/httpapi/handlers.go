package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/session"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Snapshot(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		v, err := src.View(ctx)
		if err != nil {
			status := http.StatusGatewayTimeout
			if errors.Is(err, session.ErrClosed) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, v.Snapshot())
	}
}

// Log serves feed entries newer than ?since=N. The answer's next field is the
// cursor for the following call.
func Log(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := 0
		if s := r.URL.Query().Get("since"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
				return
			}
			since = n
		}
		entries, next := src.Feed().Since(since)
		if entries == nil {
			entries = []types.LogEntry{}
		}
		writeJSON(w, http.StatusOK, types.LogResponse{Entries: entries, Next: next})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// handleEvents streams StateView snapshots as server-sent events until the
// client disconnects. The first event is the current state.
func handleEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		states, cancel := deps.Pipeline.Subscribe()
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case s, ok := <-states:
				if !ok {
					return
				}
				payload, err := json.Marshal(newStateView(s))
				if err != nil {
					slog.Warn("failed to marshal state event", "error", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", s.Version, payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

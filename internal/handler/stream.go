package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bitledger/bitledger-go/internal/pubsub"
)

// serveSSE bridges a pubsub value to a server-sent-events response.
// The subscriber immediately receives the current value, then every update,
// until the client disconnects.
func serveSSE[T any](w http.ResponseWriter, r *http.Request, value *pubsub.Value[T]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := value.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(v)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler streams lifecycle notifications to browsers over server-sent
// events. Clients reconnect on a fixed interval when the stream drops; the
// payload is opaque to them and only triggers a re-fetch.
type Handler struct {
	broadcaster *Broadcaster
	logger      *slog.Logger
	keepalive   time.Duration
}

// NewHandler constructs the SSE handler.
func NewHandler(b *Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{broadcaster: b, logger: logger, keepalive: 15 * time.Second}
}

// Register mounts the event stream endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.HandleStream)
}

// HandleStream serves one SSE connection until the client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := h.broadcaster.Subscribe()
	defer cancel()

	h.logger.InfoContext(r.Context(), "event stream connected", "subscribers", h.broadcaster.Subscribers())

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// Comment line keeps intermediaries from closing an idle stream.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

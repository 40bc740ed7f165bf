package realtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HandleSSE streams the same events as the WebSocket endpoint as
// Server-Sent Events. The stream is read-only.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := b.AddClient(TransportSSE)
	defer b.RemoveClient(client)

	rc := http.NewResponseController(w)
	for {
		select {
		case msg := <-client.send:
			// Not every writer supports deadlines; the write is still attempted.
			_ = rc.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				log.Debug().Str("clientId", client.ID).Err(err).Msg("SSE write failed, closing")
				return
			}
			flusher.Flush()
		case <-client.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

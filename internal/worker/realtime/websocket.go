package realtime

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/thebtf/devdeck/pkg/models"
)

// MaxInboundBytes caps a single inbound WebSocket message.
const MaxInboundBytes = 64 * 1024

// HandleWebSocket upgrades the request and streams events to the client
// until either side closes. Inbound pings are answered with a pong to this
// connection only; other inbound messages are ignored.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(MaxInboundBytes)

	client := b.AddClient(TransportWebSocket)
	defer b.RemoveClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go b.readLoop(ctx, cancel, conn, client)

	for {
		select {
		case msg := <-client.send:
			writeCtx, writeCancel := context.WithTimeout(ctx, WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			writeCancel()
			if err != nil {
				log.Debug().Str("clientId", client.ID).Err(err).Msg("WebSocket write failed, closing")
				return
			}
		case <-client.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop handles inbound frames until the connection fails, then cancels
// the writer side.
func (b *Broadcaster) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client) {
	defer cancel()
	limiter := rate.NewLimiter(rate.Limit(b.cfg.FramesPerSecond), b.cfg.FramesPerSecond)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if !limiter.Allow() {
			continue
		}

		msg, err := models.ParseInbound(data)
		if err != nil {
			continue
		}
		if msg.Type == models.InboundPing {
			b.Send(client, models.Pong())
		}
	}
}

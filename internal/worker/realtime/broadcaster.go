// Package realtime fans change events out to connected browsers over
// WebSocket and Server-Sent Events.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/devdeck/internal/metrics"
	"github.com/thebtf/devdeck/pkg/models"
)

const (
	// WriteTimeout is the timeout for writing one message to a client.
	// Prevents blocking on stale connections.
	WriteTimeout = 2 * time.Second

	// DefaultClientBuffer is the number of messages queued per client before
	// further messages to that client are dropped.
	DefaultClientBuffer = 64

	// DefaultFramesPerSecond limits inbound WebSocket frames per connection.
	DefaultFramesPerSecond = 20

	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Config holds broadcaster settings.
type Config struct {
	ClientBuffer    int
	FramesPerSecond int
}

// Client is one open real-time connection.
type Client struct {
	send      chan []byte
	done      chan struct{}
	ID        string
	Transport string
}

// Messages returns the outbound queue of the client, in broadcast order.
func (c *Client) Messages() <-chan []byte { return c.send }

// Done is closed once the client has been removed.
func (c *Client) Done() <-chan struct{} { return c.done }

type commandKind int

const (
	cmdAdd commandKind = iota
	cmdRemove
	cmdBroadcast
	cmdSend
	cmdCount
)

type command struct {
	client    *Client
	reply     chan int
	eventType string
	payload   []byte
	kind      commandKind
}

// Broadcaster owns the set of open connections. A single hub goroutine
// applies register, unregister and broadcast commands in arrival order, so a
// broadcast reaches exactly the clients registered before it.
type Broadcaster struct {
	commands  chan command
	quit      chan struct{}
	stopped   chan struct{}
	metrics   *metrics.Instruments
	cfg       Config
	nextID    atomic.Uint64
	closeOnce sync.Once
}

// NewBroadcaster creates a broadcaster and starts its hub goroutine.
func NewBroadcaster(cfg Config, inst *metrics.Instruments) *Broadcaster {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultClientBuffer
	}
	if cfg.FramesPerSecond <= 0 {
		cfg.FramesPerSecond = DefaultFramesPerSecond
	}
	b := &Broadcaster{
		commands: make(chan command),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		metrics:  inst,
		cfg:      cfg,
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	defer close(b.stopped)
	clients := make(map[string]*Client)

	for {
		select {
		case cmd := <-b.commands:
			switch cmd.kind {
			case cmdAdd:
				clients[cmd.client.ID] = cmd.client
				cmd.reply <- len(clients)

			case cmdRemove:
				c, ok := clients[cmd.client.ID]
				if !ok {
					cmd.reply <- -1
					continue
				}
				delete(clients, c.ID)
				close(c.done)
				cmd.reply <- len(clients)

			case cmdBroadcast:
				delivered, dropped := 0, 0
				for _, c := range clients {
					if enqueue(c, cmd.payload) {
						delivered++
					} else {
						dropped++
					}
				}
				b.metrics.RecordBroadcast(context.Background(), cmd.eventType, delivered, dropped)
				if dropped > 0 {
					log.Debug().
						Str("event", cmd.eventType).
						Int("dropped", dropped).
						Msg("Real-time clients not ready, message dropped")
				}
				cmd.reply <- delivered

			case cmdSend:
				sent := 0
				if c, ok := clients[cmd.client.ID]; ok && enqueue(c, cmd.payload) {
					sent = 1
				}
				cmd.reply <- sent

			case cmdCount:
				cmd.reply <- len(clients)
			}

		case <-b.quit:
			for _, c := range clients {
				close(c.done)
			}
			return
		}
	}
}

// enqueue hands a message to a client without blocking the hub.
func enqueue(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// do submits a command and waits for the hub's reply.
// Reports false when the broadcaster is closed. Remove replies -1 for an
// unknown client.
func (b *Broadcaster) do(cmd command) (int, bool) {
	cmd.reply = make(chan int, 1)
	select {
	case b.commands <- cmd:
		return <-cmd.reply, true
	case <-b.stopped:
		return 0, false
	}
}

// AddClient registers a new connection. Its queue starts with the
// "connected" greeting.
func (b *Broadcaster) AddClient(transport string) *Client {
	id := fmt.Sprintf("client-%d", b.nextID.Add(1))
	client := &Client{
		ID:        id,
		Transport: transport,
		send:      make(chan []byte, b.cfg.ClientBuffer),
		done:      make(chan struct{}),
	}

	if greeting, err := json.Marshal(models.Connected(id)); err == nil {
		client.send <- greeting
	}

	count, ok := b.do(command{kind: cmdAdd, client: client})
	if !ok {
		close(client.done)
		return client
	}
	b.metrics.ClientConnected(context.Background(), transport)

	log.Debug().
		Str("clientId", id).
		Str("transport", transport).
		Int("totalClients", count).
		Msg("Real-time client connected")

	return client
}

// RemoveClient unregisters a connection and closes its Done channel.
// Removing an unknown or already removed client is a no-op.
func (b *Broadcaster) RemoveClient(client *Client) {
	count, ok := b.do(command{kind: cmdRemove, client: client})
	if !ok || count < 0 {
		return
	}
	b.metrics.ClientDisconnected(context.Background(), client.Transport)

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", count).
		Msg("Real-time client disconnected")
}

// Broadcast queues event for every client open at the time of the call and
// returns how many clients accepted it. Clients with a full queue miss it.
func (b *Broadcaster) Broadcast(event models.Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Type())).Msg("Failed to marshal event")
		return 0
	}
	delivered, _ := b.do(command{kind: cmdBroadcast, payload: payload, eventType: string(event.Type())})
	return delivered
}

// Send queues event for one client only.
func (b *Broadcaster) Send(client *Client, event models.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Type())).Msg("Failed to marshal event")
		return false
	}
	sent, _ := b.do(command{kind: cmdSend, client: client, payload: payload})
	return sent == 1
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	n, _ := b.do(command{kind: cmdCount})
	return n
}

// Close stops the hub and closes the Done channel of every client.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.quit) })
	<-b.stopped
}

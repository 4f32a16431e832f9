// Package ws relays bus channels to dashboard WebSocket clients as JSON
// envelopes.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// DefaultChannels are the bus channels relayed to clients.
var DefaultChannels = []string{
	domain.ChannelOpportunities,
	domain.ChannelSignals,
	domain.ChannelBacktests,
	domain.ChannelBooksPrefix + "*",
}

// defaultSubscriptions is what a new client receives before it sends any
// subscription message. Book events are opt-in.
var defaultSubscriptions = []string{
	domain.ChannelOpportunities,
	domain.ChannelSignals,
	domain.ChannelBacktests,
}

// StatusFunc reports the engine summary pushed to a client on connect.
type StatusFunc func() domain.EngineStatus

type broadcastMsg struct {
	channel string
	frame   []byte
}

// Hub fans bus messages out to the clients subscribed to their channel.
type Hub struct {
	bus      domain.SignalBus
	channels []string
	status   StatusFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan broadcastMsg
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub relaying channels from bus. allowedOrigins restricts
// the upgrade the way the CORS middleware does; empty allows all. status may
// be nil.
func NewHub(bus domain.SignalBus, channels []string, allowedOrigins []string, status StatusFunc, logger *slog.Logger) *Hub {
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	return &Hub{
		bus:      bus,
		channels: channels,
		status:   status,
		logger:   logger.With(slog.String("component", "ws_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcastMsg, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Run relays the bus channels and owns the client set until ctx ends. On
// return every client is disconnected.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for _, ch := range h.channels {
		go h.relay(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("client disconnected", slog.Int("total_clients", n))
	}
}

// add and remove give up once Run has returned.
func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isSubscribed(msg.channel) && !c.enqueue(msg.frame) {
			h.logger.Warn("dropping message for slow client", slog.String("channel", msg.channel))
		}
	}
}

// relay forwards one bus subscription into the broadcast loop.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("subscribed", slog.String("channel", channel))

	for {
		var data []byte
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				h.logger.Warn("subscription closed", slog.String("channel", channel))
				return
			}
			data = d
		}

		concrete := resolveChannel(channel, data)
		frame, err := encodeEnvelope(concrete, data)
		if err != nil {
			h.logger.Warn("drop undecodable payload",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		select {
		case h.broadcast <- broadcastMsg{channel: concrete, frame: frame}:
		case <-ctx.Done():
			return
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, defaultSubscriptions)
	if h.status != nil {
		if frame, err := statusFrame(h.status()); err == nil {
			c.enqueue(frame)
		}
	}
	if !h.add(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

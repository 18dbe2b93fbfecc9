/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gateway carries named JSON events between browsers and the game
// over WebSockets.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10

	DefaultSendBuffer = 32
	DefaultRateLimit  = rate.Limit(10)
	DefaultRateBurst  = 20
)

// Handler receives inbound events. Calls for one connection never overlap,
// and Disconnect is always the last call for it.
type Handler interface {
	Handle(ctx context.Context, connID, event string, data json.RawMessage)
	Disconnect(ctx context.Context, connID string)
}

// Envelope is the wire form of every message, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type limitedPayload struct {
	Status  string `json:"status"`
	Info    string `json:"info"`
	Request string `json:"request,omitempty"`
}

type Options struct {
	// AllowedOrigins restricts browser origins. Empty allows any.
	AllowedOrigins []string
	RateLimit      rate.Limit
	RateBurst      int
	SendBuffer     int
	Logger         zerolog.Logger
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan any
	limiter   *rate.Limiter
	closeOnce sync.Once
}

func (c *client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks connections and the rooms they belong to.
type Hub struct {
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[string]*client
	channels map[string]map[string]struct{}
}

func NewHub(opts Options) *Hub {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}

	h := &Hub{
		opts:     opts,
		log:      opts.Logger,
		clients:  make(map[string]*client),
		channels: make(map[string]map[string]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

// ServeWS upgrades the request and feeds its events to handler until the
// connection drops.
func (h *Hub) ServeWS(handler Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		c := &client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan any, h.opts.SendBuffer),
			limiter: rate.NewLimiter(h.opts.RateLimit, h.opts.RateBurst),
		}

		h.mu.Lock()
		h.clients[c.id] = c
		h.mu.Unlock()

		h.log.Debug().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("connected")

		go c.writePump()
		h.readPump(r.Context(), c, handler)
	}
}

func (h *Hub) readPump(ctx context.Context, c *client, handler Handler) {
	defer func() {
		handler.Disconnect(context.WithoutCancel(ctx), c.id)
		h.unregister(c)
		_ = c.conn.Close()

		h.log.Debug().Str("conn", c.id).Msg("disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("conn", c.id).Msg("read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			h.EmitToParticipant(c.id, "status", limitedPayload{Status: "NOK", Info: "Too many requests", Request: msg.Event})
			continue
		}

		handler.Handle(ctx, c.id, msg.Event, msg.Data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	for room, members := range h.channels {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.channels, room)
		}
	}
	c.closeSend()
}

// deliverLocked queues msg for c, dropping the client if it cannot keep up.
func (h *Hub) deliverLocked(c *client, msg outbound) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("conn", c.id).Str("event", msg.Event).Msg("send buffer full, dropping connection")
		h.dropLocked(c)
	}
}

func (h *Hub) JoinChannel(participantID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[participantID]; !ok {
		return
	}
	members, ok := h.channels[roomKey]
	if !ok {
		members = make(map[string]struct{})
		h.channels[roomKey] = members
	}
	members[participantID] = struct{}{}
}

func (h *Hub) LeaveChannel(participantID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[roomKey]
	delete(members, participantID)
	if len(members) == 0 {
		delete(h.channels, roomKey)
	}
}

func (h *Hub) EmitToParticipant(participantID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[participantID]; ok {
		h.deliverLocked(c, outbound{Event: event, Data: payload})
	}
}

func (h *Hub) EmitToRoom(roomKey, event string, payload any) {
	h.EmitToRoomExcept(roomKey, "", event, payload)
}

func (h *Hub) EmitToRoomExcept(roomKey, excludedID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := outbound{Event: event, Data: payload}
	for id := range h.channels[roomKey] {
		if id == excludedID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.deliverLocked(c, msg)
		}
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		h.dropLocked(c)
	}
}

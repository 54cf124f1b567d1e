package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// DefaultNarrationTimeout bounds how long a narration waits for an ack
	DefaultNarrationTimeout = 2 * time.Minute

	// Time allowed for a single ingest or cluster run started by a client.
	operationTimeout = 5 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BoardSessions opens and releases live boards
type BoardSessions interface {
	Open(ctx context.Context, id string, peers usecase.BoardPeers) (*usecase.BoardSession, error)
	Release(id string)
}

// Hub maintains the rooms of every open board and the clients inside them.
type Hub struct {
	// Rooms by board id.
	rooms map[string]*Room

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to rooms map
	mu sync.Mutex

	boards           BoardSessions
	validator        *MessageValidator
	narrationTimeout time.Duration

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(boards BoardSessions, narrationTimeout time.Duration, logger *zap.Logger) *Hub {
	if narrationTimeout <= 0 {
		narrationTimeout = DefaultNarrationTimeout
	}
	return &Hub{
		rooms:            make(map[string]*Room),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		boards:           boards,
		validator:        NewMessageValidator(),
		narrationTimeout: narrationTimeout,
		logger:           logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			client.room.add(client)
			client.sendJSON(&BoardMessage{
				BaseMessage: newBase(MessageTypeBoard),
				Board:       client.room.session.Snapshot(),
			})
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("boardID", client.room.boardID))

		case client := <-h.unregister:
			if client.room.remove(client) {
				client.close()
			}
			h.leave(client.room)
			h.logger.Info("Client unregistered",
				zap.String("clientID", client.id),
				zap.String("boardID", client.room.boardID))
		}
	}
}

// join returns the room of a board, opening the board on first use
func (h *Hub) join(ctx context.Context, boardID string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[boardID]; ok {
		room.refs++
		return room, nil
	}

	room := newRoom(boardID, h.narrationTimeout, h.logger.With(zap.String("boardID", boardID)))
	session, err := h.boards.Open(ctx, boardID, room)
	if err != nil {
		return nil, err
	}
	room.session = session
	room.refs = 1
	h.rooms[boardID] = room
	return room, nil
}

// leave drops a reference to the room; the last one closes the board
func (h *Hub) leave(room *Room) {
	h.mu.Lock()
	room.refs--
	last := room.refs == 0
	if last {
		delete(h.rooms, room.boardID)
	}
	h.mu.Unlock()

	if last {
		room.cancelNarrations()
		h.boards.Release(room.boardID)
	}
}

// RoomSize returns the number of connected clients of a board
func (h *Hub) RoomSize(boardID string) int {
	h.mu.Lock()
	room, ok := h.rooms[boardID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return room.size()
}

// HandleWebSocket upgrades the request and joins the client to the board's
// room. Unknown boards are rejected before the upgrade.
func HandleWebSocket(hub *Hub, c echo.Context, boardID string, logger *zap.Logger) error {
	room, err := hub.join(c.Request().Context(), boardID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	case errors.Is(err, usecase.ErrBoardArchived):
		return echo.NewHTTPError(http.StatusGone, "board is archived")
	case err != nil:
		logger.Error("Failed to open board", zap.String("boardID", boardID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open board")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		hub.leave(room)
		return err
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		room:   room,
		conn:   conn,
		send:   make(chan WriteData, 256),
		logger: logger.With(zap.String("boardID", boardID)),
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// Room groups the clients of one board. It is the board's outbound side:
// mutations, narration requests and notifications go to every client.
type Room struct {
	boardID          string
	session          *usecase.BoardSession
	narrationTimeout time.Duration
	logger           *zap.Logger

	// guarded by Hub.mu
	refs int

	mu      sync.Mutex
	clients map[*Client]bool
	pending map[string]chan struct{}
}

var _ usecase.BoardPeers = (*Room)(nil)

func newRoom(boardID string, narrationTimeout time.Duration, logger *zap.Logger) *Room {
	return &Room{
		boardID:          boardID,
		narrationTimeout: narrationTimeout,
		logger:           logger,
		clients:          make(map[*Client]bool),
		pending:          make(map[string]chan struct{}),
	}
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = true
}

func (r *Room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.clients[c] {
		return false
	}
	delete(r.clients, c)
	return true
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// broadcast sends v to every client except skip
func (r *Room) broadcast(v interface{}, skip *Client) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c == skip {
			continue
		}
		c.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
	}
}

// Publish implements usecase.BoardPeers
func (r *Room) Publish(mutation entities.Mutation) {
	r.broadcast(&MutationMessage{
		BaseMessage: newBase(MessageTypeMutation),
		Mutation:    mutation,
	}, nil)
}

// Notify implements repositories.Notifier
func (r *Room) Notify(ctx context.Context, level, message string) {
	r.broadcast(&NotificationMessage{
		BaseMessage: newBase(MessageTypeNotification),
		Level:       level,
		Message:     message,
	}, nil)
}

// Play implements repositories.AudioPlayer. Clients play the narration and
// answer with narration_done; playback ends on the first ack, on ctx
// cancellation or after the narration timeout. A room without clients
// finishes immediately.
func (r *Room) Play(ctx context.Context, narration repositories.Narration) <-chan struct{} {
	done := make(chan struct{})
	if narration.ID == "" {
		narration.ID = uuid.NewString()
	}

	if r.size() == 0 {
		close(done)
		return done
	}

	ack := make(chan struct{})
	r.mu.Lock()
	r.pending[narration.ID] = ack
	r.mu.Unlock()

	r.broadcast(&NarrateMessage{
		BaseMessage: newBase(MessageTypeNarrate),
		Narration:   narration,
	}, nil)

	go func() {
		defer close(done)
		timer := time.NewTimer(r.narrationTimeout)
		defer timer.Stop()

		select {
		case <-ack:
		case <-ctx.Done():
		case <-timer.C:
			r.logger.Warn("Narration was never acknowledged", zap.String("narrationID", narration.ID))
		}

		r.mu.Lock()
		if r.pending[narration.ID] == ack {
			delete(r.pending, narration.ID)
		}
		r.mu.Unlock()
	}()
	return done
}

// acknowledge ends a pending narration; duplicate acks are ignored
func (r *Room) acknowledge(narrationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ack, ok := r.pending[narrationID]
	if !ok {
		return false
	}
	delete(r.pending, narrationID)
	close(ack)
	return true
}

func (r *Room) cancelNarrations() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ack := range r.pending {
		delete(r.pending, id)
		close(ack)
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	room *Room

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (c *Client) trySend(data WriteData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full, dropping message", zap.String("clientID", c.id))
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	c.trySend(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one client message
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "message rejected", err.Error()))
		return
	}

	session := c.room.session
	switch msg := parsed.(type) {
	case *IngestMessage:
		go c.handleIngest(msg)

	case *StrokeMessage:
		if err := session.AddStroke(context.Background(), msg.Stroke); err != nil {
			c.sendJSON(CreateErrorMessage("stroke_rejected", "stroke rejected", err.Error()))
			return
		}
		c.room.broadcast(msg, c)

	case *ClusterMessage:
		go c.handleCluster()

	case *ClearMessage:
		session.Clear(context.Background())

	case *NarrationDoneMessage:
		if !c.room.acknowledge(msg.NarrationID) {
			c.logger.Debug("Ignoring ack for unknown narration", zap.String("narrationID", msg.NarrationID))
		}

	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

func (c *Client) handleIngest(msg *IngestMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	c.logger.Info("Ingest requested",
		zap.String("clientID", c.id),
		zap.String("sessionID", msg.SessionID))

	summary, err := c.room.session.Ingest(ctx, msg.Request())
	if err != nil {
		c.logger.Warn("Ingest ended with error", zap.Error(err))
	}
	c.sendJSON(CreateIngestDoneMessage(summary, err))
}

func (c *Client) handleCluster() {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	summary := c.room.session.Cluster(ctx)
	c.room.broadcast(CreateClusterDoneMessage(summary), nil)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
	"cashbattle-backend/internal/store"
)

const (
	writeWait      = 10 * time.Second
	clientQueueLen = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	ledger *services.Ledger
	lobby  *services.Lobby
	clock  clockwork.Clock
	hub    *WebSocketHub
	logger *zap.Logger

	stopLobby func()
}

type WebSocketHub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	logger     *zap.Logger
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan *Message
}

type Message struct {
	Type     string      `json:"type"`
	UserID   string      `json:"user_id,omitempty"`
	BattleID string      `json:"battle_id,omitempty"`
	Data     interface{} `json:"data"`
}

func NewWebSocketHandler(ledger *services.Ledger, lobby *services.Lobby, s *store.Store, clock clockwork.Clock, logger *zap.Logger) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}

	go hub.run()

	h := &WebSocketHandler{
		ledger: ledger,
		lobby:  lobby,
		clock:  clock,
		hub:    hub,
		logger: logger,
	}
	h.watchLobby(s)
	return h
}

// Close stops the hub and the lobby watcher. Connected clients are dropped.
func (h *WebSocketHandler) Close() {
	h.stopLobby()
	close(h.hub.done)
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, clientQueueLen),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
	}()

	h.sendBalance(c.Request.Context(), client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", zap.String("user_id", userID), zap.Error(err))
			}
			break
		}

		h.handleMessage(c.Request.Context(), client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.enqueue(&Message{
			Type:   "PONG",
			UserID: client.UserID,
			Data:   gin.H{"timestamp": h.clock.Now().Unix()},
		})
	case "GET_BALANCE":
		h.sendBalance(ctx, client)
	case "GET_LOBBY":
		h.sendLobby(ctx, client.UserID)
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	balance, err := h.ledger.Balance(ctx, client.UserID)
	if err != nil {
		h.logger.Warn("Failed to get balance for WS", zap.String("user_id", client.UserID), zap.Error(err))
		return
	}
	h.BroadcastBalance(client.UserID, balance)
}

func (h *WebSocketHandler) sendLobby(ctx context.Context, userID string) {
	challenges, err := h.lobby.List(ctx, "", "")
	if err != nil {
		h.logger.Warn("Failed to list lobby for WS", zap.Error(err))
		return
	}
	h.hub.enqueue(&Message{
		Type:   "LOBBY_UPDATE",
		UserID: userID,
		Data:   gin.H{"challenges": challenges},
	})
}

// watchLobby pushes the open challenge list to every client whenever the
// stored lobby changes.
func (h *WebSocketHandler) watchLobby(s *store.Store) {
	changes, cancel := s.Subscribe(store.KeyGlobalChallenges)
	h.stopLobby = cancel

	go func() {
		for range changes {
			h.sendLobby(context.Background(), "")
		}
	}()
}

func (h *WebSocketHandler) BroadcastBalance(userID string, balance models.Balance) {
	h.hub.enqueue(&Message{
		Type:   "BALANCE_UPDATE",
		UserID: userID,
		Data:   balance,
	})
}

func (h *WebSocketHandler) BroadcastSession(userID string, view services.SessionView) {
	h.hub.enqueue(&Message{
		Type:     "SESSION_UPDATE",
		UserID:   userID,
		BattleID: view.ID,
		Data:     view,
	})
}

// enqueue never blocks the caller; a saturated hub drops the message.
func (hub *WebSocketHub) enqueue(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		hub.logger.Debug("WebSocket broadcast dropped", zap.String("type", msg.Type))
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			if hub.clients[client.UserID] == nil {
				hub.clients[client.UserID] = make(map[*Client]bool)
			}
			hub.clients[client.UserID][client] = true
			hub.logger.Debug("Client registered", zap.String("user_id", client.UserID))

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)

		case <-hub.done:
			for _, conns := range hub.clients {
				for client := range conns {
					hub.remove(client)
				}
			}
			return
		}
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	conns, ok := hub.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(hub.clients, client.UserID)
	}
	close(client.send)
	hub.logger.Debug("Client unregistered", zap.String("user_id", client.UserID))
}

func (hub *WebSocketHub) deliver(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		hub.remove(client)
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.UserID != "" {
		for client := range hub.clients[message.UserID] {
			hub.deliver(client, message)
		}
		return
	}
	for _, conns := range hub.clients {
		for client := range conns {
			hub.deliver(client, message)
		}
	}
}

func (client *Client) writePump() {
	defer client.Conn.Close()

	for msg := range client.send {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(msg); err != nil {
			return
		}
	}
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

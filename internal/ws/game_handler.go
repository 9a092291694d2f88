package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/playpool/tictactoe/internal/game"
)

// Inbound message types
const (
	MsgFindMatch = "findMatch"
	MsgMakeMove  = "makeMove"
)

// WSMessage is the envelope of every inbound frame
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FindMatchData accepts the stake as a JSON number or a numeric string
type FindMatchData struct {
	Address     string      `json:"address"`
	StakeAmount json.Number `json:"stakeAmount"`
}

type MakeMoveData struct {
	MatchID string      `json:"matchId"`
	Index   json.Number `json:"index"`
	Address string      `json:"address"`
}

var errEmptyPayload = errors.New("empty payload")

// Dispatcher receives decoded client intents
type Dispatcher interface {
	FindMatch(connectionID, address, stakeAmount string) error
	MakeMove(connectionID, matchID string, index int, address string) error
	Disconnect(connectionID string)
}

// Handler upgrades HTTP requests and wires each connection to the dispatcher
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
}

// NewHandler creates a websocket handler. checkOrigin may be nil to allow all origins.
func NewHandler(hub *Hub, dispatcher Dispatcher, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleWebSocket handles WebSocket connections for tic-tac-toe clients
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		ready: make(chan struct{}),
	}

	hello, _ := json.Marshal(game.Event{Type: game.EventHello, Data: game.HelloData{SocketID: client.id}})
	client.send <- hello

	if !h.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go h.readPump(client)
}

// readPump reads frames until the connection drops, then reports the disconnect
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.remove(c)
		c.conn.Close()
		h.dispatcher.Disconnect(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for client %s: %v", c.id, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.hub.Send(c.id, game.ErrorEvent("Invalid message"))
			continue
		}

		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg WSMessage) {
	switch msg.Type {
	case MsgFindMatch:
		var data FindMatchData
		if err := decodeData(msg.Data, &data); err != nil {
			h.hub.Send(c.id, game.ErrorEvent("Invalid matchmaking payload"))
			return
		}
		// rejections are already reported to the client
		_ = h.dispatcher.FindMatch(c.id, data.Address, data.StakeAmount.String())

	case MsgMakeMove:
		var data MakeMoveData
		if err := decodeData(msg.Data, &data); err != nil {
			h.hub.Send(c.id, game.ErrorEvent("Invalid move payload"))
			return
		}
		index, err := strconv.Atoi(strings.TrimSpace(data.Index.String()))
		if err != nil || data.MatchID == "" {
			h.hub.Send(c.id, game.ErrorEvent("Invalid move payload"))
			return
		}
		_ = h.dispatcher.MakeMove(c.id, data.MatchID, index, data.Address)

	default:
		h.hub.Send(c.id, game.ErrorEvent("Unknown message type"))
	}
}

// decodeData unmarshals a payload, treating a missing one as an error
func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}

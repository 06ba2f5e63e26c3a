package arena

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"basileus/internal/army"
	"basileus/internal/auth"
	"basileus/internal/campaign"
	"basileus/internal/data"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMsgSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Players resolves a player id to their campaign.
type Players interface {
	Player(ctx context.Context, id string) (*campaign.Service, error)
}

type connectedData struct {
	PlayerID string     `json:"playerId"`
	Army     army.State `json:"army"`
	BattleID string     `json:"battleId,omitempty"`
}

// NewWebsocketHandler upgrades GET /ws for a known player and streams their
// grid events and battles. Clients may send {"type":"retreat"} or
// {"type":"army"}.
func NewWebsocketHandler(h *Hub, players Players) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := auth.PlayerID(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		svc, err := players.Player(r.Context(), playerID)
		if errors.Is(err, data.ErrPlayerNotFound) {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		c := NewClient(uuid.NewString(), playerID, conn)
		h.Register(c)

		hello := connectedData{PlayerID: playerID, Army: svc.Army()}
		hello.BattleID, _ = svc.ActiveBattle()
		reply(c, Message{Type: MsgConnected, Data: hello})

		go writePump(c)
		go readPump(c, h, svc)

		log.Info().Str("player", playerID).Str("client", c.ID).Int("total", h.ClientCount()).Msg("WebSocket client connected")
	}
}

func reply(c *Client, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- raw:
	default:
	}
}

func readPump(c *Client, h *Hub, svc *campaign.Service) {
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
		log.Info().Str("player", c.PlayerID).Str("client", c.ID).Msg("WebSocket client disconnected")
	}()

	c.Conn.SetReadLimit(maxMsgSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("player", c.PlayerID).Msg("WebSocket unexpected close")
			}
			return
		}

		var input struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &input); err != nil {
			continue
		}

		switch input.Type {
		case "retreat":
			if err := svc.Retreat(); err != nil {
				reply(c, Message{Type: MsgError, Data: err.Error()})
			}
		case "army":
			reply(c, Message{Type: MsgGrid, Data: svc.Army()})
		}
	}
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

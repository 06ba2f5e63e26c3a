package arena

import (
	"encoding/json"
	"sync"

	"basileus/internal/army"
	"basileus/internal/campaign"
	"basileus/internal/combat"

	"github.com/rs/zerolog/log"
)

// Message types pushed to clients.
const (
	MsgConnected     = "connected"
	MsgGrid          = "grid"
	MsgBattleStarted = "battle_started"
	MsgTick          = "tick"
	MsgResult        = "result"
	MsgError         = "error"
)

// Message is the envelope for everything sent over the socket.
type Message struct {
	Type     string `json:"type"`
	BattleID string `json:"battleId,omitempty"`
	Data     any    `json:"data"`
}

// Hub routes grid events and battle snapshots to each player's open
// connections. A player may have several.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	battles map[string]string // battleID -> playerID
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		battles: make(map[string]string),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister removes c and closes its send channel. It is safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.Send)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToPlayer delivers msg to every connection of playerID. Slow clients
// drop messages instead of stalling the sender.
func (h *Hub) SendToPlayer(playerID string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.PlayerID != playerID {
			continue
		}
		select {
		case c.Send <- raw:
		default:
			log.Warn().Str("player", playerID).Str("type", msg.Type).Msg("Dropping websocket message, buffer full")
		}
	}
}

func (h *Hub) GridChanged(playerID string, ev army.Event) {
	h.SendToPlayer(playerID, Message{Type: MsgGrid, Data: ev})
}

func (h *Hub) BattleStarted(playerID, battleID string) {
	h.mu.Lock()
	h.battles[battleID] = playerID
	h.mu.Unlock()
	h.SendToPlayer(playerID, Message{Type: MsgBattleStarted, BattleID: battleID, Data: nil})
}

func (h *Hub) BattleFinished(playerID string, out campaign.Outcome) {
	h.mu.Lock()
	delete(h.battles, out.BattleID)
	h.mu.Unlock()
	h.SendToPlayer(playerID, Message{Type: MsgResult, BattleID: out.BattleID, Data: out})
}

// Tick forwards a battle snapshot to the player fighting it.
func (h *Hub) Tick(battleID string, st combat.State) {
	h.mu.RLock()
	playerID, ok := h.battles[battleID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.SendToPlayer(playerID, Message{Type: MsgTick, BattleID: battleID, Data: st})
}

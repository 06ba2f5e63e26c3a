package arena

import "github.com/gorilla/websocket"

const sendBufSize = 256

// Client is one websocket connection of a player.
type Client struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
}

func NewClient(id, playerID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       id,
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, sendBufSize),
	}
}

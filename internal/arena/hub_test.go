package arena

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"basileus/internal/army"
	"basileus/internal/battle"
	"basileus/internal/campaign"
	"basileus/internal/catalog"
	"basileus/internal/combat"
	"basileus/internal/data"
	"basileus/internal/enemy"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "p1", nil)
	h.Register(c)
	assert.Equal(t, 1, h.ClientCount())

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())
	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_RoutesByPlayer(t *testing.T) {
	h := NewHub()
	mine := NewClient("c1", "p1", nil)
	alsoMine := NewClient("c2", "p1", nil)
	theirs := NewClient("c3", "p2", nil)
	for _, c := range []*Client{mine, alsoMine, theirs} {
		h.Register(c)
	}

	h.GridChanged("p1", army.Event{Type: army.EventUnitAdded, Value: 60})
	assert.Equal(t, MsgGrid, recv(t, mine).Type)
	assert.Equal(t, MsgGrid, recv(t, alsoMine).Type)
	assert.Len(t, theirs.Send, 0)
}

func TestHub_BattleLifecycle(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "p1", nil)
	h.Register(c)

	h.Tick("b1", combat.State{Tick: 1})
	assert.Len(t, c.Send, 0, "ticks of unknown battles are dropped")

	h.BattleStarted("p1", "b1")
	m := recv(t, c)
	assert.Equal(t, MsgBattleStarted, m.Type)
	assert.Equal(t, "b1", m.BattleID)

	h.Tick("b1", combat.State{Tick: 2})
	m = recv(t, c)
	assert.Equal(t, MsgTick, m.Type)

	h.BattleFinished("p1", campaign.Outcome{Result: battle.Result{BattleID: "b1", IsVictory: true}})
	m = recv(t, c)
	assert.Equal(t, MsgResult, m.Type)

	h.Tick("b1", combat.State{Tick: 3})
	assert.Len(t, c.Send, 0)
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "p1", nil)
	h.Register(c)
	for i := 0; i < sendBufSize+10; i++ {
		h.GridChanged("p1", army.Event{Type: army.EventUnitMoved})
	}
	assert.Len(t, c.Send, sendBufSize)
}

func TestWebsocketHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	cat := catalog.Default()
	m := campaign.NewManager(ctx, campaign.Config{StartingSolidi: 500}, campaign.Deps{
		Store:     data.NewMemoryStore(),
		Catalog:   cat,
		Quests:    campaign.DefaultQuests(),
		Generator: enemy.New(cat, rand.New(rand.NewSource(1))),
		Battles:   battle.New(battle.Config{TickRate: 1}, rand.New(rand.NewSource(1)), hub),
		Notifier:  hub,
	})
	p, svc, err := m.Register(ctx, "Anna")
	require.NoError(t, err)

	srv := httptest.NewServer(NewWebsocketHandler(hub, m))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?player=ghost", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?player="+p.ID, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() Message {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, MsgConnected, read().Type)

	_, err = svc.BuyUnit(ctx, "soldier")
	require.NoError(t, err)
	assert.Equal(t, MsgGrid, read().Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "retreat"}))
	msg := read()
	assert.Equal(t, MsgError, msg.Type)

	_, err = svc.StartBattle(ctx, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, MsgBattleStarted, read().Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "retreat"}))
	for {
		msg = read()
		if msg.Type == MsgResult {
			break
		}
	}
	payload, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, payload["isVictory"])
	assert.Equal(t, true, payload["retreated"])
}

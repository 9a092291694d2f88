package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playpool/tictactoe/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantChain confirms every match and reports both stakes right away
type instantChain struct {
	mu      sync.Mutex
	results map[string]string
}

func (c *instantChain) RegisterMatch(ctx context.Context, matchID, playerX, playerO, stake string) error {
	return nil
}

func (c *instantChain) AwaitConfirmation(ctx context.Context, matchID string) error { return nil }

func (c *instantChain) AwaitBothStaked(ctx context.Context, matchID string, progress func(int)) error {
	progress(1)
	return nil
}

func (c *instantChain) ReportResult(ctx context.Context, matchID, winner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[matchID] = winner
	return nil
}

func (c *instantChain) winner(matchID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.results[matchID]
	return w, ok
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func (tc *testConn) send(typ string, data interface{}) {
	tc.t.Helper()
	require.NoError(tc.t, tc.conn.WriteJSON(map[string]interface{}{"type": typ, "data": data}))
}

// expect reads frames until one of the given type arrives
func (tc *testConn) expect(typ string) inbound {
	tc.t.Helper()
	require.NoError(tc.t, tc.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg inbound
		require.NoError(tc.t, tc.conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

func setupServer(t *testing.T) (*httptest.Server, *Hub, *instantChain) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	chain := &instantChain{results: make(map[string]string)}
	manager := game.NewManager(hub, chain, game.Options{ReportTimeout: time.Second})

	router := gin.New()
	router.GET("/ws", NewHandler(hub, manager, nil).HandleWebSocket)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub, chain
}

func dial(t *testing.T, srv *httptest.Server) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func decode[T any](t *testing.T, msg inbound) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func TestHelloCarriesSocketID(t *testing.T) {
	srv, hub, _ := setupServer(t)
	c := dial(t, srv)

	hello := decode[game.HelloData](t, c.expect(game.EventHello))
	assert.NotEmpty(t, hello.SocketID)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFullGameOverWebsocket(t *testing.T) {
	srv, _, chain := setupServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	addrA := "0x1111111111111111111111111111111111111111"
	addrB := "0x2222222222222222222222222222222222222222"

	a.send("findMatch", map[string]interface{}{"address": addrA, "stakeAmount": 10})
	queued := decode[game.QueuedData](t, a.expect(game.EventQueued))
	assert.Equal(t, "10", queued.StakeAmount)

	b.send("findMatch", map[string]interface{}{"address": addrB, "stakeAmount": "10"})
	foundA := decode[game.MatchFoundData](t, a.expect(game.EventMatchFound))
	foundB := decode[game.MatchFoundData](t, b.expect(game.EventMatchFound))
	assert.Equal(t, foundA, foundB)
	assert.Equal(t, addrA, foundA.PlayerX)

	var start struct {
		MatchID string    `json:"matchId"`
		Next    string    `json:"next"`
		Board   []*string `json:"board"`
	}
	require.NoError(t, json.Unmarshal(a.expect(game.EventGameStart).Data, &start))
	b.expect(game.EventGameStart)
	assert.Equal(t, "X", start.Next)
	require.Len(t, start.Board, 9)
	for _, cell := range start.Board {
		assert.Nil(t, cell)
	}

	moves := []struct {
		c     *testConn
		addr  string
		index interface{}
	}{
		{a, addrA, 0}, {b, addrB, "3"}, {a, addrA, 1}, {b, addrB, 4}, {a, addrA, 2},
	}
	for _, mv := range moves {
		mv.c.send("makeMove", map[string]interface{}{"matchId": foundA.MatchID, "index": mv.index, "address": mv.addr})
		a.expect(game.EventGameState)
	}

	over := decode[game.GameOverData](t, b.expect(game.EventGameOver))
	assert.Equal(t, "WIN", over.Result)
	assert.Equal(t, addrA, over.WinnerAddress)
	assert.Equal(t, game.X, over.WinnerSymbol)

	require.Eventually(t, func() bool {
		w, ok := chain.winner(foundA.MatchID)
		return ok && w == addrA
	}, 2*time.Second, 5*time.Millisecond)
}

func TestInvalidPayloadsGetErrorMessages(t *testing.T) {
	srv, _, _ := setupServer(t)
	c := dial(t, srv)
	c.expect(game.EventHello)

	cases := []struct {
		typ  string
		data interface{}
		want string
	}{
		{"findMatch", nil, "Invalid matchmaking payload"},
		{"findMatch", map[string]interface{}{"address": "0xabc", "stakeAmount": "ten"}, "Invalid matchmaking payload"},
		{"findMatch", map[string]interface{}{"address": "", "stakeAmount": 5}, "Invalid matchmaking payload"},
		{"makeMove", map[string]interface{}{"matchId": "m", "index": "x"}, "Invalid move payload"},
		{"makeMove", map[string]interface{}{"matchId": "m", "index": 1.5}, "Invalid move payload"},
		{"dance", map[string]interface{}{}, "Unknown message type"},
	}
	for _, tc := range cases {
		c.send(tc.typ, tc.data)
		got := decode[game.ErrorData](t, c.expect(game.EventError))
		assert.Equal(t, tc.want, got.Message, "%s %v", tc.typ, tc.data)
	}
}

func TestDisconnectForfeitsToOpponent(t *testing.T) {
	srv, hub, chain := setupServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	addrA := "0x1111111111111111111111111111111111111111"
	addrB := "0x2222222222222222222222222222222222222222"
	a.send("findMatch", map[string]interface{}{"address": addrA, "stakeAmount": "1.5"})
	a.expect(game.EventQueued)
	b.send("findMatch", map[string]interface{}{"address": addrB, "stakeAmount": "1.5"})
	found := decode[game.MatchFoundData](t, b.expect(game.EventMatchFound))
	b.expect(game.EventGameStart)

	require.NoError(t, a.conn.Close())

	over := decode[game.GameOverData](t, b.expect(game.EventGameOver))
	assert.Equal(t, "FORFEIT", over.Result)
	assert.Equal(t, addrB, over.WinnerAddress)
	require.Eventually(t, func() bool {
		w, ok := chain.winner(found.MatchID)
		return ok && w == addrB
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSendToUnknownConnectionIsIgnored(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.Send("missing", game.ErrorEvent("nobody home"))
	})
	assert.Zero(t, hub.Count())
}

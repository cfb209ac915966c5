package server_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"QuoteSentinel/internal/model"
)

type wsMessage struct {
	Type    string       `json:"type"`
	Symbols []string     `json:"symbols"`
	Data    *model.Quote `json:"data"`
	Error   string       `json:"error"`
}

func dial(t *testing.T, fx *fixture, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(fx.handler)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStream_DeliversSubscribedQuotes(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx, "?symbols=SOJA")
	require.Eventually(t, func() bool { return fx.bus.Subscribers("soja") == 1 }, 2*time.Second, 10*time.Millisecond)

	fx.bus.Publish("milho", model.Quote{Symbol: "milho", Price: 85})
	fx.bus.Publish("soja", model.Quote{Symbol: "soja", Price: 121.5})

	msg := read(t, conn)
	require.Equal(t, "quote", msg.Type)
	require.Equal(t, "soja", msg.Data.Symbol)
	require.Equal(t, 121.5, msg.Data.Price)
}

func TestStream_SubscribeAndUnsubscribe(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx, "?symbols=soja")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "symbols": []string{"BTC", "milho"}}))
	msg := read(t, conn)
	require.Equal(t, "subscribed", msg.Type)
	require.Equal(t, []string{"btc", "milho", "soja"}, msg.Symbols)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "unsubscribe", "symbols": []string{"soja"}}))
	msg = read(t, conn)
	require.Equal(t, []string{"btc", "milho"}, msg.Symbols)
	require.Zero(t, fx.bus.Subscribers("soja"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	msg = read(t, conn)
	require.Equal(t, "error", msg.Type)
}

func TestStream_ReleasesSubscriptionsOnDisconnect(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx, "?symbols=soja,btc")
	require.Eventually(t, func() bool { return fx.bus.Subscribers("btc") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return fx.bus.Subscribers("soja") == 0 && fx.bus.Subscribers("btc") == 0
	}, 2*time.Second, 10*time.Millisecond)

	// publishing after disconnect must not panic
	fx.bus.Publish("soja", model.Quote{Symbol: "soja", Price: 1})
}

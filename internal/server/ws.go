package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/phuslu/log"

	"QuoteSentinel/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamMessage is the envelope sent to and received from stream clients.
type streamMessage struct {
	Type    string       `json:"type"`
	Symbols []string     `json:"symbols,omitempty"`
	Data    *model.Quote `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// streamClient is one WebSocket peer. Each watched symbol holds one bus
// subscription that is released when the peer disconnects.
type streamClient struct {
	srv  *Server
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	subs   map[string]func()
	closed bool
}

// GET /ws?symbols=soja,btc
func (s *Server) stream(c *gin.Context) {
	if s.cfg.Bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming is disabled"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	client := &streamClient{
		srv:  s,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		subs: make(map[string]func()),
	}
	s.cfg.Metrics.WSClientDelta(1)
	log.Info().Str("remote", c.Request.RemoteAddr).Msg("ws client connected")

	client.watch(splitSymbols(c.Query("symbols")))
	go client.writePump()
	client.readPump()
}

func (c *streamClient) watch(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, s := range symbols {
		if _, ok := c.subs[s]; ok {
			continue
		}
		c.subs[s] = c.srv.cfg.Bus.Subscribe(s, c.onQuote)
	}
}

func (c *streamClient) unwatch(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		if unsubscribe, ok := c.subs[s]; ok {
			unsubscribe()
			delete(c.subs, s)
		}
	}
}

func (c *streamClient) watching() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	symbols := make([]string, 0, len(c.subs))
	for s := range c.subs {
		symbols = append(symbols, s)
	}
	return model.NormalizeSymbols(symbols)
}

// onQuote runs on the publisher goroutine; slow peers drop updates.
func (c *streamClient) onQuote(q model.Quote) {
	c.enqueue(streamMessage{Type: "quote", Data: &q})
}

func (c *streamClient) enqueue(msg streamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Debug().Str("type", msg.Type).Msg("ws send buffer full, dropping message")
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for s, unsubscribe := range c.subs {
		unsubscribe()
		delete(c.subs, s)
	}
	close(c.send)
	c.mu.Unlock()

	c.srv.cfg.Metrics.WSClientDelta(-1)
	log.Info().Msg("ws client disconnected")
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump handles subscribe and unsubscribe requests until the peer goes
// away.
func (c *streamClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(streamMessage{Type: "error", Error: "invalid message"})
			continue
		}
		symbols := model.NormalizeSymbols(msg.Symbols)
		switch msg.Type {
		case "subscribe":
			c.watch(symbols)
		case "unsubscribe":
			c.unwatch(symbols)
		default:
			c.enqueue(streamMessage{Type: "error", Error: "unknown message type " + msg.Type})
			continue
		}
		c.enqueue(streamMessage{Type: "subscribed", Symbols: c.watching()})
	}
}

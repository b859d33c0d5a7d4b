package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"

	"github.com/glowvn/glowchat/internal/bus"
	"github.com/glowvn/glowchat/internal/config"
)

const wsChannelName = "websocket"

const wsWriteTimeout = 5 * time.Second

// wsInbound is what chat clients send over the socket.
type wsInbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsOutbound is a plain (non-paced) message to a client.
type wsOutbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// WebSocketChannel serves chat clients over a websocket endpoint.
// Paced replies arrive as a typing_start / message_chunk /
// message_complete event sequence.
type WebSocketChannel struct {
	BaseChannel
	host    string
	port    int
	server  *http.Server
	clients sync.Map
	nextID  atomic.Int64
}

func NewWebSocketChannel(cfg config.WebSocketConfig, gwCfg config.GatewayConfig, b *bus.MessageBus) (*WebSocketChannel, error) {
	host := cfg.Host
	if host == "" {
		host = gwCfg.Host
	}
	port := cfg.Port
	if port == 0 {
		port = gwCfg.Port
	}
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &WebSocketChannel{
		BaseChannel: NewBaseChannel(wsChannelName, b, nil),
		host:        host,
		port:        port,
	}
	return ch, nil
}

func (w *WebSocketChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/healthz", func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusOK)
		_, _ = wr.Write([]byte("ok"))
	})

	w.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", w.host, w.port),
		Handler: mux,
	}

	go func() {
		log.Infof("[websocket] listening on %s", w.server.Addr)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("[websocket] server error: %v", err)
		}
	}()

	return nil
}

func (w *WebSocketChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Errorf("[websocket] accept error: %v", err)
		return
	}

	clientID := fmt.Sprintf("ws-%d", w.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	w.clients.Store(clientID, client)
	log.Infof("[websocket] client connected: %s", clientID)

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		log.Infof("[websocket] client disconnected: %s", clientID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		w.bus.Inbound <- bus.InboundMessage{
			Channel:   wsChannelName,
			SenderID:  clientID,
			ChatID:    clientID,
			Content:   msg.Content,
			Timestamp: time.Now(),
		}
	}
}

func (w *WebSocketChannel) Send(msg bus.OutboundMessage) error {
	data, err := json.Marshal(wsOutbound{
		Type:    "message",
		Content: msg.Content,
	})
	if err != nil {
		return err
	}
	return w.write(msg.ChatID, data)
}

// SendEvent forwards the event as-is; clients consume the typed JSON
// stream directly.
func (w *WebSocketChannel) SendEvent(ev bus.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.write(ev.ChatID, data)
}

func (w *WebSocketChannel) write(chatID string, data []byte) error {
	client, ok := w.clients.Load(chatID)
	if !ok {
		// Broadcast to all clients if no specific target
		w.clients.Range(func(key, value any) bool {
			c := value.(*wsClient)
			ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
			defer cancel()
			_ = c.conn.Write(ctx, websocket.MessageText, data)
			return true
		})
		return nil
	}

	c := client.(*wsClient)
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebSocketChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Errorf("[websocket] shutdown error: %v", err)
		}
	}
	w.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	log.Info("[websocket] stopped")
	return nil
}

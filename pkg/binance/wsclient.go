package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errNotConnected = errors.New("websocket not connected")

// WSClient owns one WebSocket connection. Inbound text messages are handed,
// one at a time and in arrival order, to the message handler.
type WSClient struct {
	url               string
	dialer            *websocket.Dialer
	reconnectInterval time.Duration

	mu        sync.Mutex // guards conn and connected
	conn      *websocket.Conn
	connected chan struct{}

	writeMu sync.Mutex // gorilla allows a single concurrent writer

	handler     func([]byte)
	onReconnect func()
	logger      *zap.Logger
}

// NewWSClient creates a client for url. Nothing is dialed until Connect.
func NewWSClient(url string, handshakeTimeout, reconnectInterval time.Duration, logger *zap.Logger) *WSClient {
	if reconnectInterval <= 0 {
		reconnectInterval = 3 * time.Second
	}
	return &WSClient{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		reconnectInterval: reconnectInterval,
		connected:         make(chan struct{}),
		logger:            logger.With(zap.String("url", url)),
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// SetReconnectHandler sets a function run in its own goroutine after every
// successful reconnect, typically to restore subscriptions.
func (c *WSClient) SetReconnectHandler(h func()) {
	c.onReconnect = h
}

// Connected returns a channel closed while a connection is established.
// A new, open channel is installed when the connection drops.
func (c *WSClient) Connected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the server. It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("failed to connect to websocket", zap.Error(err))
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	select {
	case <-c.connected:
	default:
		close(c.connected)
	}
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	c.logger.Info("websocket connected")
	return nil
}

// Send writes v as a JSON text frame. The write deadline follows ctx.
func (c *WSClient) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline() // zero time clears the deadline
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Listen reads until ctx is done, reconnecting on read errors.
func (c *WSClient) Listen(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("websocket read error", zap.Error(err))
			c.markDisconnected(conn)
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		if msgType != websocket.TextMessage || c.handler == nil {
			continue
		}
		c.handler(msg)
	}
}

// reconnect retries at a fixed interval until it succeeds or ctx is done.
func (c *WSClient) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectInterval):
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("retrying reconnect...")
			continue
		}

		c.logger.Info("reconnected successfully")
		if c.onReconnect != nil {
			go c.onReconnect()
		}
		return true
	}
}

func (c *WSClient) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = make(chan struct{})
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	select {
	case <-c.connected:
		c.connected = make(chan struct{})
	default:
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return conn.Close()
}

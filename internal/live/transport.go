package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppiankov/truthwire/internal/util"
)

const defaultHandshakeTimeout = 15 * time.Second

// Conn is an open bidirectional connection to the engine
type Conn interface {
	// WriteJSON sends one message. Safe for concurrent use.
	WriteJSON(v any) error

	// ReadMessage returns the next text or binary payload.
	// It returns io.EOF when the peer closed the connection normally.
	ReadMessage() ([]byte, error)

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections to the engine
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketDialer dials the Gemini Live websocket endpoint
type WebsocketDialer struct {
	Endpoint   string
	APIKey     string
	HTTPProxy  string
	HTTPSProxy string
}

// Dial opens the websocket with the API key as a query parameter
func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse live endpoint: %w", err)
	}
	if d.APIKey != "" {
		q := u.Query()
		q.Set("key", d.APIKey)
		u.RawQuery = q.Encode()
	}

	dialer := &websocket.Dialer{
		Proxy:            util.NewProxyFunc(d.HTTPProxy, d.HTTPSProxy),
		HandshakeTimeout: defaultHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		// Never echo the URL: it carries the key
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return newWSConn(conn), nil
}

// wsConn serialises writes on a gorilla connection
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return data, nil
		default:
			continue
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		if err := c.conn.Close(); err != nil && !errors.Is(err, io.EOF) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

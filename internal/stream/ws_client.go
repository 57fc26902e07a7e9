// Package stream receives chunked LLM text from the companion chat API and
// forwards it, chunk by chunk, to the animation pipeline.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSChunkMessage is one streamed message from the chat API.
type WSChunkMessage struct {
	Type    string `json:"type"` // "chunk", "done" or "error"
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client maintains a WebSocket connection to the chat stream endpoint.
type Client struct {
	streamURL      string
	reconnectDelay time.Duration
	maxReconnects  int
	logger         zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc

	// Callbacks
	onChunk func(text string)
	onDone  func()
	onError func(err error)
}

// NewClient creates a chat stream client. reconnectDelay and maxReconnects
// bound the reconnect loop; maxReconnects <= 0 means retry forever.
func NewClient(streamURL string, reconnectDelay time.Duration, maxReconnects int, logger zerolog.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Client{
		streamURL:      streamURL,
		reconnectDelay: reconnectDelay,
		maxReconnects:  maxReconnects,
		logger:         logger.With().Str("component", "chat-stream").Logger(),
	}
}

// SetChunkCallback sets the callback for raw text chunks.
func (c *Client) SetChunkCallback(cb func(text string)) {
	c.onChunk = cb
}

// SetDoneCallback sets the callback for stream termination messages.
func (c *Client) SetDoneCallback(cb func()) {
	c.onDone = cb
}

// SetErrorCallback sets the callback for connection errors.
func (c *Client) SetErrorCallback(cb func(err error)) {
	c.onError = cb
}

// Connect starts the connection loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.connectLoop(ctx)
	return nil
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.mu.Unlock()
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send submits a user message over the open connection.
func (c *Client) Send(message string) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(map[string]string{"type": "message", "content": message})
}

// connectLoop maintains the WebSocket connection with reconnection.
func (c *Client) connectLoop(ctx context.Context) {
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.connectWS(ctx)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		failures++
		if c.maxReconnects > 0 && failures > c.maxReconnects {
			c.logger.Error().Err(err).Int("attempts", failures).Msg("Chat stream gave up reconnecting")
			if c.onError != nil {
				c.onError(err)
			}
			return
		}

		c.logger.Warn().Err(err).Msg("Chat stream disconnected, reconnecting...")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// connectWS dials the endpoint and reads messages until the connection drops.
func (c *Client) connectWS(ctx context.Context) error {
	u, err := url.Parse(c.streamURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	c.logger.Info().Str("url", u.String()).Msg("Connecting to chat stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().Msg("Connected to chat stream")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var msg WSChunkMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			c.handleMessage(msg)
		}
	}
}

func (c *Client) handleMessage(msg WSChunkMessage) {
	switch msg.Type {
	case "chunk":
		if c.onChunk != nil && msg.Content != "" {
			c.onChunk(msg.Content)
		}
	case "done":
		c.logger.Debug().Msg("Chat stream message complete")
		if c.onDone != nil {
			c.onDone()
		}
	case "error":
		c.logger.Warn().Str("message", msg.Message).Msg("Chat stream reported an error")
		if c.onError != nil {
			c.onError(fmt.Errorf("stream error: %s", msg.Message))
		}
	default:
		c.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown stream message type")
	}
}

// ParseChunk decodes a raw JSON stream message. Exposed for transports that
// deliver the same payloads outside this client.
func ParseChunk(raw []byte) (WSChunkMessage, error) {
	var msg WSChunkMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return WSChunkMessage{}, fmt.Errorf("parse chunk: %w", err)
	}
	return msg, nil
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/client/session"
	"github.com/earnplay/cardbattle/go/internal/game/events"
)

// FrameHandler consumes decoded server frames. The round session implements
// this.
type FrameHandler interface {
	HandleFrame(data []byte) error
}

// Config holds connection settings for the game stream.
type Config struct {
	URL              string // ws:// or wss:// endpoint
	Token            string // session token from the account subsystem
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// DefaultConfig returns the connection defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
	}
}

// ErrNotConnected is returned by sends while the stream is down; the wager
// is not queued, matching the fire-and-forget contract.
var ErrNotConnected = errors.New("game stream not connected")

// Client owns the single streaming connection to the game server. It reads
// frames on one goroutine and hands each to the frame handler in order, so
// no two handlers ever overlap. On a broken stream it reconnects with
// exponential backoff and requests a fresh initial state.
type Client struct {
	config  Config
	handler FrameHandler
	sink    session.NotificationSink

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a client for the given stream endpoint.
func New(config Config, handler FrameHandler, sink session.NotificationSink) *Client {
	return &Client{
		config:  config,
		handler: handler,
		sink:    sink,
	}
}

// Run connects and consumes the stream until ctx is cancelled. Each broken
// connection is surfaced to the notification sink and retried.
func (c *Client) Run(ctx context.Context) error {
	first := true
	for {
		if err := c.connect(ctx); err != nil {
			return fmt.Errorf("connect game stream: %w", err)
		}
		if !first {
			c.sink.Notify(session.LevelSuccess, "Reconnected to game")
		}
		first = false

		c.readLoop(ctx)

		c.closeConn()
		if ctx.Err() != nil {
			return nil
		}
		c.sink.Notify(session.LevelError, "Connection lost - reconnecting")
	}
}

// connect dials the endpoint with exponential backoff and asks the server
// for the current round state so a mid-round joiner synchronizes
// immediately.
func (c *Client) connect(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.InitialBackoff
	policy.MaxInterval = c.config.MaxBackoff
	policy.MaxElapsedTime = 0

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	operation := func() error {
		conn, _, err := dialer.DialContext(ctx, c.config.URL, header)
		if err != nil {
			log.Warn().Err(err).Str("url", c.config.URL).Msg("dial failed, backing off")
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	log.Info().Str("url", c.config.URL).Msg("game stream connected")
	return c.send(events.TypeGetInitialState, struct {
		Type events.Type `json:"type"`
	}{Type: events.TypeGetInitialState})
}

// readLoop consumes frames until the connection breaks or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	conn.SetReadLimit(c.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-pingDone:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("game stream closed unexpectedly")
			}
			return
		}
		if err := c.handler.HandleFrame(message); err != nil {
			// A bad frame must not take the session down.
			log.Warn().Err(err).Msg("frame rejected by handler")
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.mu.Unlock()
			if err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				conn.Close()
				return
			}
		}
	}
}

// SendPlaceBid serializes the wager command onto the stream. Implements
// session.Sender.
func (c *Client) SendPlaceBid(cmd events.PlaceBid) error {
	return c.send(events.TypePlaceBid, cmd)
}

func (c *Client) send(frameType events.Type, frame any) error {
	data, err := events.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", frameType, err)
	}
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

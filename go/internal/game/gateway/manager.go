package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/earnplay/cardbattle/go/internal/game/events"
)

// GameHandler is what the gateway needs from the round engine: wager
// commands coming off the stream, and state snapshots for fresh
// connections.
type GameHandler interface {
	PlaceBid(ctx context.Context, playerID int64, cmd events.PlaceBid)
	SnapshotFrames(ctx context.Context, playerID int64) ([][]byte, error)
}

// ConnectionConfig holds per-socket settings.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the websocket defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Manager owns every live websocket for the card game and fans event
// envelopes out to them: broadcasts to everyone, player-targeted frames to
// that player's connections only.
type Manager struct {
	mu          sync.RWMutex
	connections map[*Connection]bool
	byPlayer    map[int64]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig
	game     GameHandler

	deliverCh chan events.Envelope
}

// Connection is one client socket. Send is never closed; done is closed
// exactly once, under the manager mutex, when the connection unregisters.
type Connection struct {
	ID       string
	PlayerID int64
	Conn     *websocket.Conn
	Send     chan []byte
	done     chan struct{}
	manager  *Manager

	ConnectedAt time.Time
}

// NewManager creates a connection manager over the given engine.
func NewManager(config ConnectionConfig, game GameHandler) *Manager {
	return &Manager{
		connections: make(map[*Connection]bool),
		byPlayer:    make(map[int64]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:    config,
		game:      game,
		deliverCh: make(chan events.Envelope, 1000),
	}
}

// Start processes fan-out deliveries until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("gateway connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway connection manager shutting down")
			return
		case env := <-m.deliverCh:
			m.fanOut(env)
		}
	}
}

// Deliver queues an envelope for fan-out. Implements the bus subscription
// callback.
func (m *Manager) Deliver(env events.Envelope) {
	select {
	case m.deliverCh <- env:
	default:
		log.Warn().Str("type", string(env.Type)).Msg("delivery channel full, dropping event")
	}
}

// Upgrade turns an authenticated HTTP request into a managed websocket.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, playerID int64) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		manager:     m,
		ConnectedAt: time.Now(),
	}
	m.register(connection)

	go connection.writePump()
	go connection.readPump()

	// Seed the new connection with the current round state.
	if frames, err := m.game.SnapshotFrames(r.Context(), playerID); err == nil {
		for _, frame := range frames {
			connection.enqueue(frame)
		}
	}

	log.Info().
		Str("connection_id", connection.ID).
		Int64("player_id", playerID).
		Msg("websocket connection established")
	return nil
}

func (m *Manager) register(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn] = true
	if m.byPlayer[conn.PlayerID] == nil {
		m.byPlayer[conn.PlayerID] = make(map[*Connection]bool)
	}
	m.byPlayer[conn.PlayerID][conn] = true
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn]; !ok {
		return
	}
	delete(m.connections, conn)
	close(conn.done)

	if peers, ok := m.byPlayer[conn.PlayerID]; ok {
		delete(peers, conn)
		if len(peers) == 0 {
			delete(m.byPlayer, conn.PlayerID)
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Int64("player_id", conn.PlayerID).
		Msg("websocket connection closed")
}

// fanOut sends the envelope's frame to its targets. A connection that
// cannot keep up is dropped rather than blocking the rest of the room.
func (m *Manager) fanOut(env events.Envelope) {
	m.mu.RLock()
	var targets []*Connection
	if env.PlayerID != 0 {
		for conn := range m.byPlayer[env.PlayerID] {
			targets = append(targets, conn)
		}
	} else {
		for conn := range m.connections {
			targets = append(targets, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range targets {
		if !conn.enqueue(env.Frame) {
			log.Warn().
				Str("connection_id", conn.ID).
				Int64("player_id", conn.PlayerID).
				Msg("send buffer full, closing connection")
			m.unregister(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("type", string(env.Type)).
		Int("connections", len(targets)).
		Msg("event fanned out")
}

// Stats reports the current connection counts.
func (m *Manager) Stats() (total int, players int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections), len(m.byPlayer)
}

// enqueue buffers a frame for the write pump. It returns false when the
// connection has unregistered or its buffer is full; Send itself is never
// closed, so a racing unregister can only drop the frame, not panic.
func (c *Connection) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write frame")
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		c.handleClientFrame(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientFrame routes a client command. Bad frames get an error notice
// back on this connection only.
func (c *Connection) handleClientFrame(message []byte) {
	frameType, err := events.Peek(message)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("malformed client frame")
		c.sendError("Invalid JSON format")
		return
	}

	ctx := context.Background()
	switch frameType {
	case events.TypePlaceBid:
		var cmd events.PlaceBid
		if err := decode(message, &cmd); err != nil {
			c.sendError("Invalid bid payload")
			return
		}
		c.manager.game.PlaceBid(ctx, c.PlayerID, cmd)
	case events.TypeGetInitialState:
		frames, err := c.manager.game.SnapshotFrames(ctx, c.PlayerID)
		if err != nil {
			c.sendError("Game state unavailable")
			return
		}
		for _, frame := range frames {
			c.enqueue(frame)
		}
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(frameType)).
			Msg("ignoring unknown client frame")
	}
}

func (c *Connection) sendError(message string) {
	data, err := events.Marshal(events.NewErrorNotice(message))
	if err != nil {
		return
	}
	c.enqueue(data)
}

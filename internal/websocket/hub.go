package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"belgaum-backend/internal/chat"
	"belgaum-backend/internal/middleware"
	"belgaum-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 * 1024
	sendBufferSize = 256
)

type sessionTokenParser interface {
	ParseSessionToken(tokenStr string) (*middleware.SessionClaims, error)
}

type orchestratorFactory interface {
	New(session models.Session, r chat.Renderer) *chat.Orchestrator
}

// Hub upgrades widget connections and binds each one to its own chat
// orchestrator.
type Hub struct {
	mu          sync.Mutex
	connections map[*client]struct{}
	tokens      sessionTokenParser
	factory     orchestratorFactory
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewHub creates a hub. An empty allowedOrigins list accepts any origin.
func NewHub(tokens sessionTokenParser, factory orchestratorFactory, allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		connections: make(map[*client]struct{}),
		tokens:      tokens,
		factory:     factory,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket authenticates the session token from the query string and
// serves the connection until either side closes it.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ParseSessionToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		logger: h.logger.With(
			zap.String("session_id", claims.SessionID),
			zap.String("client_id", claims.ClientID),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		),
	}
	c.orch = h.factory.New(models.Session{ID: claims.SessionID, ClientID: claims.ClientID}, c)

	h.register(c)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		defer h.unregister(c)
		c.readPump()
	}()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[c] = struct{}{}
	c.logger.Info("websocket connected", zap.Int("active", len(h.connections)))
}

func (h *Hub) unregister(c *client) {
	c.orch.Shutdown()
	c.stop()

	h.mu.Lock()
	delete(h.connections, c)
	active := len(h.connections)
	h.mu.Unlock()

	c.logger.Info("websocket disconnected", zap.Int("active", active))
}

// ActiveConnections reports the number of open widget connections.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Shutdown closes every connection and waits for their goroutines, or for ctx
// to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for c := range h.connections {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// client is one widget connection. Render is called with the orchestrator
// lock held, so it only queues frames for writePump.
type client struct {
	conn   *websocket.Conn
	orch   *chat.Orchestrator
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (c *client) Render(ev models.ChatEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("failed to encode chat event", zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.conn.Close()
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *client) dispatch(frame models.ClientFrame) {
	ctx := context.Background()

	switch frame.Type {
	case models.FrameOpen:
		c.orch.Open(ctx)
	case models.FrameSend:
		if !c.orch.Send(ctx, frame.Content) {
			c.Render(models.ChatEvent{Type: models.EventRejected, SessionID: c.orch.Session().ID, Reason: "input not accepted"})
		}
	case models.FrameClose:
		c.orch.Close()
	case models.FrameHandOff:
		c.orch.RequestHandOff()
	default:
		c.logger.Debug("ignoring unknown frame", zap.String("type", frame.Type))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

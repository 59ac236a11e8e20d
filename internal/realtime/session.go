package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/timmy/sportsync/internal/logger"
)

// WebSocket timeouts follow the gorilla chat example.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

// WSSession is a Session backed by a websocket connection.
type WSSession struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	mu     sync.Mutex
	send   chan Event
	closed bool
}

// NewUpgrader returns a websocket upgrader. A nil checkOrigin accepts every origin.
func NewUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// Serve upgrades the request, registers the session with the hub, and runs
// its pumps until the connection drops.
func Serve(ctx context.Context, hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &WSSession{
		id:   uuid.New().String(),
		conn: conn,
		hub:  hub,
		send: make(chan Event, sendBuffer),
	}
	hub.Register(s)

	ctx = logger.SetSessionID(ctx, s.id)
	logger.CtxInfo(ctx, "[Realtime] Operator session connected")

	go s.writePump()
	s.readPump(ctx)
	return nil
}

// ID returns the session id.
func (s *WSSession) ID() string {
	return s.id
}

// Send queues an event; it returns false if the buffer is full or the session closed.
func (s *WSSession) Send(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- e:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the connection.
func (s *WSSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// readPump drains client frames so pongs and close frames are processed.
// Clients never send commands; inbound payloads are discarded.
func (s *WSSession) readPump(ctx context.Context) {
	defer func() {
		s.hub.Unregister(s.id)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				logger.CtxWarn(ctx, "[Realtime] Read error: %v", err)
			}
			logger.CtxInfo(ctx, "[Realtime] Operator session disconnected")
			return
		}
	}
}

func (s *WSSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case event, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

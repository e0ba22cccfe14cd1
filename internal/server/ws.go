package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
)

const (
	sendChSize          = 256
	writeWait           = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Message types sent on a view feed.
const (
	TypeSnapshot = "snapshot"
	TypeChanges  = "changes"
)

// Envelope wraps every websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// local clients only
	CheckOrigin: func(*http.Request) bool { return true },
}

// feed is one websocket client with a single write goroutine.
type feed struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newFeed(conn *ws.Conn, logger *slog.Logger) *feed {
	return &feed{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// send queues data for the write loop. Non-blocking; drops if the client
// is too slow.
func (f *feed) send(data []byte) {
	select {
	case <-f.done:
	case f.sendCh <- data:
	default:
		f.logger.Warn("WebSocket send channel full, dropping message")
	}
}

func (f *feed) close() {
	f.once.Do(func() {
		close(f.done)
		_ = f.conn.Close()
	})
}

// writeLoop drains sendCh and pings the client. It returns on write error or
// shutdown.
func (f *feed) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer f.close()

	for {
		select {
		case <-f.done:
			_ = f.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case data := <-f.sendCh:
			if err := f.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := f.conn.WriteMessage(ws.TextMessage, data); err != nil {
				f.logger.Debug("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			if err := f.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.logger.Debug("WebSocket ping error", "error", err)
				return
			}
		}
	}
}

// readLoop discards client messages and ends the feed when the client goes
// away. Pongs are handled by the connection.
func (f *feed) readLoop() {
	defer f.close()
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleViewFeed streams the view: one snapshot, then every change set.
func (s *Server) handleViewFeed(w http.ResponseWriter, r *http.Request) {
	v, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	if s.deps.Dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "notifications are disabled"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "view", v.Name(), "error", err)
		return
	}
	f := newFeed(conn, s.log.With("view", v.Name()))

	// subscribe before taking the snapshot so no change set is missed
	sub := s.deps.Dispatcher.Subscribe(dispatcher.ViewTopic(v.Name()), func(e dispatcher.Event) error {
		cs, ok := e.Payload.(view.ChangeSet)
		if !ok {
			return nil
		}
		data, err := marshalEnvelope(TypeChanges, cs)
		if err != nil {
			return err
		}
		f.send(data)
		return nil
	})
	defer sub.Unsubscribe()

	data, err := marshalEnvelope(TypeSnapshot, snapshotOf(v))
	if err != nil {
		s.log.Error("Snapshot encoding failed", "view", v.Name(), "error", err)
		f.close()
		return
	}
	f.send(data)

	s.log.Debug("View feed opened", "view", v.Name(), "remote", r.RemoteAddr)
	go f.readLoop()
	f.writeLoop(s.pingInterval)
	s.log.Debug("View feed closed", "view", v.Name(), "remote", r.RemoteAddr)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// Frame types.
const (
	FrameState  = "state"
	FrameCommit = "commit"
	FrameResult = "result"
	FrameError  = "error"
)

// Frame is a websocket message in either direction.
type Frame struct {
	Type string `json:"type"`

	// Seq numbers state frames per session, starting at 1.
	Seq uint64 `json:"seq,omitempty"`

	// Values holds the watched keys of a state frame.
	Values map[string]any `json:"values,omitempty"`

	// Mutation and Payload describe a client commit.
	Mutation string `json:"mutation,omitempty"`
	Payload  any    `json:"payload,omitempty"`

	// Ref echoes the client's ref on result and error frames.
	Ref string `json:"ref,omitempty"`

	Error string `json:"error,omitempty"`
}

// Session is a websocket client watching a set of keys.
// It implements reactive.Subscriber.
type Session struct {
	id        uint64
	sessionID string
	keys      []string

	server *Server
	conn   *websocket.Conn
	send   chan []byte
	seq    atomic.Uint64

	// publishMu serializes value collection and sequencing so frames leave
	// in seq order.
	publishMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	logger *slog.Logger
}

func newSession(srv *Server, conn *websocket.Conn, keys []string) *Session {
	sid := uuid.NewString()
	return &Session{
		id:        reactive.NextID(),
		sessionID: sid,
		keys:      keys,
		server:    srv,
		conn:      conn,
		send:      make(chan []byte, srv.config.SendBuffer),
		done:      make(chan struct{}),
		logger:    srv.logger.With("session_id", sid),
	}
}

// ID implements reactive.Subscriber.
func (s *Session) ID() uint64 {
	return s.id
}

// SessionID returns the session's UUID.
func (s *Session) SessionID() string {
	return s.sessionID
}

// Keys returns the watched keys.
func (s *Session) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Done returns a channel that is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Update implements reactive.Subscriber. It queues a state frame and never
// blocks.
func (s *Session) Update() error {
	if s.closed.Load() {
		return nil
	}
	return s.publish()
}

// publish reads the watched keys under the session's evaluation context,
// which also renews its registrations, and queues a state frame. A closed
// session publishes nothing, so it cannot register itself again.
func (s *Session) publish() error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.closed.Load() {
		return nil
	}

	ctx := reactive.WithSubscriber(context.Background(), s)
	state := s.server.store.State()
	values := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		v, _ := state.Get(ctx, k)
		values[k] = v
	}

	data, err := json.Marshal(Frame{Type: FrameState, Seq: s.seq.Add(1), Values: values})
	if err != nil {
		return &SessionError{SessionID: s.sessionID, Op: "encode", Err: err}
	}
	return s.enqueue(data)
}

func (s *Session) enqueue(data []byte) error {
	if s.closed.Load() {
		return &SessionError{SessionID: s.sessionID, Op: "send", Err: ErrSessionClosed}
	}
	select {
	case s.send <- data:
		return nil
	default:
		s.server.metrics.FrameDropped()
		return &SessionError{SessionID: s.sessionID, Op: "send", Err: ErrSlowConsumer}
	}
}

func (s *Session) reply(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("encode reply", "error", err)
		return
	}
	if err := s.enqueue(data); err != nil {
		s.logger.Warn("reply dropped", "error", err)
	}
}

// Close ends the session: it leaves every registry, stops the writer and
// closes the connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		// Under publishMu, so a publish in flight finishes its reads first.
		s.publishMu.Lock()
		s.closed.Store(true)
		s.server.store.State().Unsubscribe(s)
		s.publishMu.Unlock()
		close(s.done)
		s.server.removeSession(s)

		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
		s.logger.Info("session closed", "frames", s.seq.Load())
	})
}

// writeLoop drains the send channel and pings the client.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.server.config.PingInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write error", "error", err)
				return
			}
			s.server.metrics.FrameSent()
		case <-ticker.C:
			deadline := time.Now().Add(s.server.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping error", "error", err)
				return
			}
		}
	}
}

// readLoop handles client frames until the connection fails.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.server.config.MaxMessageSize)
	readTimeout := 2 * s.server.config.PingInterval
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			s.reply(Frame{Type: FrameError, Error: "invalid frame: " + err.Error()})
			continue
		}
		s.handleFrame(f)
	}
}

func (s *Session) handleFrame(f Frame) {
	switch f.Type {
	case FrameCommit:
		ctx := reactive.Untracked(context.Background())
		err := s.server.store.Commit(ctx, f.Mutation, f.Payload)
		if err != nil && !notifyOnly(err) {
			s.reply(Frame{Type: FrameError, Ref: f.Ref, Error: err.Error()})
			return
		}
		s.reply(Frame{Type: FrameResult, Ref: f.Ref})
	default:
		s.reply(Frame{Type: FrameError, Ref: f.Ref, Error: fmt.Sprintf("unknown frame type %q", f.Type)})
	}
}

// handleWatch upgrades the request and runs a session until it ends.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()

	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if !state.Has(k) {
				s.writeError(w, r, fmt.Errorf("%w: %q", reactive.ErrUnknownKey, k))
				return
			}
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = state.Keys()
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(s, conn, keys)
	s.addSession(sess)
	sess.logger.Info("session opened", "keys", keys)

	// The initial frame also registers the session on its keys.
	if err := sess.publish(); err != nil {
		sess.logger.Error("initial publish failed", "error", err)
		sess.Close()
		return
	}

	go sess.writeLoop()
	sess.readLoop()
}

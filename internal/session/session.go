// Package session owns one live WebSocket connection: it joins the
// connection to its room group, translates inbound frames into typed
// events, and writes group frames back out to the client.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/countdown"
	"github.com/memeroyale/realtime/internal/events"
	"github.com/memeroyale/realtime/internal/metrics"
	"github.com/memeroyale/realtime/internal/registry"
)

// AnonymousName is the sentinel identity for sessions without an
// authenticated caller, so downstream UIs always have a displayable
// name.
const AnonymousName = "Anonymous"

// Config holds the transport tunables for a session.
type Config struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// DefaultConfig returns the default transport tunables.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
	}
}

// DefaultCheckOrigin accepts all origins. Restrict in production
// through gateway configuration.
func DefaultCheckOrigin(r *http.Request) bool {
	return true
}

// Deps are the collaborators a session needs.
type Deps struct {
	Registry  *registry.Registry
	Countdown *countdown.Manager
	Presence  *Tracker
	Clock     clockwork.Clock
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Config    Config
}

// Session is one live connection bound to a single room and
// sub-channel. Lifecycle: Connecting -> Open -> Closed. A session in
// the refused state (authentication failed on the main sub-channel)
// keeps its transport open for error frames but never joins a group.
type Session struct {
	id       string
	room     string
	kind     Kind
	username string
	joined   bool

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	deps   Deps
	logger zerolog.Logger
}

// New creates a session for an upgraded connection. joined is false
// when the handshake was accepted but the caller failed the main
// sub-channel's authentication check.
func New(conn *websocket.Conn, room string, kind Kind, username string, joined bool, deps Deps) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		room:     room,
		kind:     kind,
		username: username,
		joined:   joined,
		conn:     conn,
		send:     make(chan []byte, deps.Config.SendBuffer),
		done:     make(chan struct{}),
		deps:     deps,
		logger: deps.Logger.With().
			Str("session_id", id).
			Str("room", room).
			Str("channel", string(kind)).
			Logger(),
	}
}

// ID implements registry.Member.
func (s *Session) ID() string {
	return s.id
}

// Deliver implements registry.Member: it queues a frame for the client
// without blocking. A full buffer or a closed session is reported as an
// error so the registry can drop the member.
func (s *Session) Deliver(frame []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("session %s closed", s.id)
	case s.send <- frame:
		return nil
	default:
		return fmt.Errorf("session %s send buffer full", s.id)
	}
}

// Start transitions the session to Open: it joins the group, emits the
// presence event on the main sub-channel, and launches the read and
// write pumps. Refused sessions skip the join and receive a structured
// error frame over the open transport instead.
func (s *Session) Start() error {
	if s.joined {
		if err := s.deps.Registry.Join(s.group(), s); err != nil {
			s.conn.Close()
			return fmt.Errorf("open session: %w", err)
		}
		s.deps.Metrics.ActiveSessions.WithLabelValues(string(s.kind)).Inc()

		switch s.kind {
		case KindMain:
			s.deps.Presence.Joined(s.room, s.username)
		case KindTimer:
			s.syncTimerState()
		}
	}

	go s.writePump()
	go s.readPump()

	if !s.joined {
		s.sendError("authentication required")
	}

	s.logger.Info().Str("username", s.username).Bool("joined", s.joined).Msg("session opened")
	return nil
}

func (s *Session) group() string {
	return s.kind.Group(s.room)
}

// syncTimerState unicasts the current countdown value to a session
// joining the timer sub-channel mid-countdown, so reconnecting clients
// resume from the shared state instead of waiting for the next tick.
func (s *Session) syncTimerState() {
	remaining, ok, err := s.deps.Countdown.Remaining(context.Background(), s.group())
	if err != nil {
		s.logger.Debug().Err(err).Msg("read countdown state")
		return
	}
	if !ok || remaining <= 0 {
		return
	}
	if frame, err := events.Encode(events.TimerUpdate{TimeLeft: remaining}); err == nil {
		_ = s.Deliver(frame)
	}
}

// readPump reads frames until the transport closes, then transitions
// the session to Closed.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(s.deps.Config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.deps.Config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.deps.Config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		s.handleFrame(data)
		s.conn.SetReadDeadline(time.Now().Add(s.deps.Config.ReadTimeout))
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.deps.Config.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.deps.Config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.deps.Config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close transitions to Closed: leave the group and, on the main
// sub-channel, announce the departure. The leave notification is
// best-effort; nothing guarantees delivery before the transport is
// gone.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()

		if s.joined {
			s.deps.Registry.Leave(s.group(), s.id)
			s.deps.Metrics.ActiveSessions.WithLabelValues(string(s.kind)).Dec()
			if s.kind == KindMain {
				s.deps.Presence.Left(s.room, s.username)
			}
		}

		s.logger.Info().Msg("session closed")
	})
}

// handleFrame dispatches one inbound frame. Malformed input never
// terminates the session: the sender gets a unicast error frame and the
// connection stays open.
func (s *Session) handleFrame(data []byte) {
	if !s.joined {
		// Refused sessions may keep sending; their frames go nowhere.
		return
	}

	switch s.kind {
	case KindMain:
		s.handleChat(data)
	case KindTimer:
		s.handleTimer(data)
	case KindVote:
		s.handleVote(data)
	case KindMeme:
		s.handleMeme(data)
	}
}

func (s *Session) handleChat(data []byte) {
	var frame struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("invalid payload")
		return
	}
	// An absent or empty message is ignored without an error.
	if frame.Message == nil || *frame.Message == "" {
		return
	}

	s.broadcast(events.ChatMessage{
		Username:  s.username,
		Message:   *frame.Message,
		Timestamp: s.deps.Clock.Now().UTC(),
	})
}

func (s *Session) handleTimer(data []byte) {
	var frame struct {
		Seconds *float64 `json:"seconds"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("Invalid timer value")
		return
	}
	if frame.Seconds == nil || *frame.Seconds <= 0 || *frame.Seconds != math.Trunc(*frame.Seconds) {
		s.sendError("Invalid timer value")
		return
	}

	// Fire-and-forget: the driver outlives this session.
	s.deps.Countdown.Start(s.group(), int(*frame.Seconds))
}

func (s *Session) handleVote(data []byte) {
	var frame struct {
		Vote json.RawMessage `json:"vote"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("Invalid vote value")
		return
	}
	if len(frame.Vote) == 0 || bytes.Equal(bytes.TrimSpace(frame.Vote), []byte("null")) {
		s.sendError("Invalid vote value")
		return
	}

	s.broadcast(events.VoteUpdate{Vote: frame.Vote})
}

func (s *Session) handleMeme(data []byte) {
	var frame struct {
		Update json.RawMessage `json:"meme_update"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("Invalid meme update")
		return
	}
	if len(frame.Update) == 0 {
		s.sendError("Invalid meme update")
		return
	}

	s.broadcast(events.MemeUpdate{Update: frame.Update})
}

func (s *Session) broadcast(ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode event")
		return
	}
	if err := s.deps.Registry.Broadcast(s.group(), frame); err != nil {
		s.logger.Warn().Err(err).Msg("broadcast failed")
		return
	}
	s.deps.Metrics.BroadcastsTotal.Inc()
}

// sendError unicasts an error frame to this session only.
func (s *Session) sendError(msg string) {
	s.deps.Metrics.RejectedFramesTotal.WithLabelValues(string(s.kind)).Inc()
	if err := s.Deliver(events.ErrorFrame(msg)); err != nil {
		s.logger.Debug().Err(err).Msg("error frame dropped")
	}
}

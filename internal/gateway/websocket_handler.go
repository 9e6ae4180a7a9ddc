package gateway

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/identity"
	"github.com/memeroyale/realtime/internal/session"
)

// roomNamePattern mirrors the route constraint: word characters only.
var roomNamePattern = regexp.MustCompile(`^\w+$`)

// WebSocketHandler upgrades room connections and hands them to
// sessions. One connection serves exactly one (room, sub-channel)
// pair.
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	identity       identity.Provider
	deps           session.Deps
	allowAnonymous bool
	logger         zerolog.Logger
}

// NewWebSocketHandler creates the handler for the /ws/room routes.
func NewWebSocketHandler(provider identity.Provider, deps session.Deps, allowAnonymous bool, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     session.DefaultCheckOrigin,
		},
		identity:       provider,
		deps:           deps,
		allowAnonymous: allowAnonymous,
		logger:         logger,
	}
}

func kindFromChannel(channel string) (session.Kind, bool) {
	switch channel {
	case "":
		return session.KindMain, true
	case "timer":
		return session.KindTimer, true
	case "vote":
		return session.KindVote, true
	case "meme":
		return session.KindMeme, true
	}
	return "", false
}

// HandleRoom serves GET /ws/room/{room} and /ws/room/{room}/{channel}.
// An unauthenticated caller on the main sub-channel is still upgraded
// when anonymous access is disabled: it gets a structured error frame
// over the open connection instead of a bare handshake rejection.
func (h *WebSocketHandler) HandleRoom(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	channel := r.PathValue("channel")

	kind, ok := kindFromChannel(channel)
	if !ok {
		http.Error(w, "unknown sub-channel", http.StatusNotFound)
		return
	}
	if !roomNamePattern.MatchString(room) {
		http.Error(w, "invalid room name", http.StatusBadRequest)
		return
	}

	username, authenticated := h.identity.Identify(r)
	joined := true
	if !authenticated {
		username = session.AnonymousName
		if kind == session.KindMain && !h.allowAnonymous {
			joined = false
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("failed to upgrade connection")
		return
	}

	s := session.New(conn, room, kind, username, joined, h.deps)
	if err := s.Start(); err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("failed to open session")
	}
}

// HandleStats reports local connection counts per group.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	sizes := h.deps.Registry.GroupSizes()
	total := 0
	for _, n := range sizes {
		total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_sessions": total,
		"groups":         sizes,
	})
}

// RegisterRoutes registers the WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/room/{room}", h.HandleRoom)
	mux.HandleFunc("GET /ws/room/{room}/{channel}", h.HandleRoom)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}

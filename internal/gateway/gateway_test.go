package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memeroyale/realtime/internal/identity"
)

func newTestServer(t *testing.T, allowAnonymous bool) *httptest.Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.NATSURL = "memory"
	cfg.AllowAnonymous = allowAnonymous

	service, err := NewService(context.Background(), cfg, identity.NewHeaderProvider(), clockwork.NewRealClock(), zerolog.Nop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		service.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

// expectSilence asserts no frame arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(window))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame, got %s", data)
	assert.True(t, strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline"))
}

func TestChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, true)
	before := time.Now().Add(-time.Second)

	alice := dial(t, srv, "/ws/room/demo?username=alice")
	join := readFrame(t, alice)
	assert.Equal(t, "user_join", join["type"])
	assert.Equal(t, "alice", join["username"])

	bob := dial(t, srv, "/ws/room/demo?username=bob")
	bobJoin := readFrame(t, bob)
	assert.Equal(t, "bob", bobJoin["username"])

	// alice sees bob arrive
	assert.Equal(t, "bob", readFrame(t, alice)["username"])

	sendFrame(t, alice, `{"message":"gg"}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		chat := readFrame(t, conn)
		assert.Equal(t, "chat_message", chat["type"])
		assert.Equal(t, "gg", chat["message"])
		assert.Equal(t, "alice", chat["username"])

		ts, err := time.Parse(time.RFC3339, chat["timestamp"].(string))
		require.NoError(t, err)
		assert.False(t, ts.Before(before))
	}
}

func TestEmptyChatMessageIgnored(t *testing.T) {
	srv := newTestServer(t, true)

	alice := dial(t, srv, "/ws/room/demo?username=alice")
	readFrame(t, alice) // own join

	sendFrame(t, alice, `{"something":"else"}`)
	sendFrame(t, alice, `{"message":""}`)

	// no error frame, no broadcast
	expectSilence(t, alice, 300*time.Millisecond)
}

func TestMalformedFrameKeepsSessionOpen(t *testing.T) {
	srv := newTestServer(t, true)

	alice := dial(t, srv, "/ws/room/demo?username=alice")
	readFrame(t, alice) // own join

	sendFrame(t, alice, `not json`)
	errFrame := readFrame(t, alice)
	assert.Equal(t, "invalid payload", errFrame["error"])

	// session survives and still broadcasts
	sendFrame(t, alice, `{"message":"still here"}`)
	chat := readFrame(t, alice)
	assert.Equal(t, "still here", chat["message"])
}

func TestUserLeave(t *testing.T) {
	srv := newTestServer(t, true)

	alice := dial(t, srv, "/ws/room/demo?username=alice")
	readFrame(t, alice)

	bob := dial(t, srv, "/ws/room/demo?username=bob")
	readFrame(t, bob)
	readFrame(t, alice) // bob's join

	bob.Close()

	leave := readFrame(t, alice)
	assert.Equal(t, "user_leave", leave["type"])
	assert.Equal(t, "bob", leave["username"])
}

func TestAnonymousFallback(t *testing.T) {
	srv := newTestServer(t, true)

	conn := dial(t, srv, "/ws/room/demo")
	join := readFrame(t, conn)
	assert.Equal(t, "user_join", join["type"])
	assert.Equal(t, "Anonymous", join["username"])
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, false)

	alice := dial(t, srv, "/ws/room/demo?username=alice")
	readFrame(t, alice) // own join

	anon := dial(t, srv, "/ws/room/demo")
	errFrame := readFrame(t, anon)
	assert.Equal(t, "authentication required", errFrame["error"])

	// the refused session never joined: no presence event, and its
	// frames go nowhere
	sendFrame(t, anon, `{"message":"hi"}`)
	expectSilence(t, alice, 300*time.Millisecond)
}

func TestVoteBroadcast(t *testing.T) {
	srv := newTestServer(t, true)

	a := dial(t, srv, "/ws/room/demo/vote")
	b := dial(t, srv, "/ws/room/demo/vote")

	sendFrame(t, a, `{"vote":{"meme_id":7,"score":1}}`)

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "vote", frame["action"])
		vote := frame["vote"].(map[string]any)
		assert.EqualValues(t, 7, vote["meme_id"])
	}
}

func TestInvalidVoteRejectedToSenderOnly(t *testing.T) {
	srv := newTestServer(t, true)

	a := dial(t, srv, "/ws/room/demo/vote")
	b := dial(t, srv, "/ws/room/demo/vote")

	sendFrame(t, a, `{"vote":null}`)

	errFrame := readFrame(t, a)
	assert.Equal(t, "Invalid vote value", errFrame["error"])
	expectSilence(t, b, 300*time.Millisecond)
}

func TestMemeUpdateBroadcast(t *testing.T) {
	srv := newTestServer(t, true)

	a := dial(t, srv, "/ws/room/demo/meme")
	b := dial(t, srv, "/ws/room/demo/meme")

	sendFrame(t, a, `{"meme_update":{"caption":"fresh"}}`)

	frame := readFrame(t, b)
	assert.Equal(t, "update_meme", frame["action"])
	update := frame["meme_update"].(map[string]any)
	assert.Equal(t, "fresh", update["caption"])

	sendFrame(t, a, `{"nope":true}`)
	errFrame := readFrame(t, a)
	assert.Equal(t, "Invalid meme update", errFrame["error"])
}

func TestInvalidTimerValues(t *testing.T) {
	srv := newTestServer(t, true)

	conn := dial(t, srv, "/ws/room/demo/timer")

	for _, payload := range []string{`{}`, `{"seconds":0}`, `{"seconds":-3}`, `{"seconds":2.5}`, `{"seconds":"soon"}`} {
		sendFrame(t, conn, payload)
		errFrame := readFrame(t, conn)
		assert.Equal(t, "Invalid timer value", errFrame["error"], "payload %s", payload)
	}
}

func TestTimerCountdownBroadcast(t *testing.T) {
	srv := newTestServer(t, true)

	a := dial(t, srv, "/ws/room/demo/timer")
	b := dial(t, srv, "/ws/room/demo/timer")

	sendFrame(t, a, `{"seconds":1}`)

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "timer", frame["action"])
		assert.EqualValues(t, 0, frame["time_left"])
	}
}

func TestTimerStateSyncOnJoin(t *testing.T) {
	srv := newTestServer(t, true)

	a := dial(t, srv, "/ws/room/demo/timer")
	sendFrame(t, a, `{"seconds":600}`)
	time.Sleep(100 * time.Millisecond)

	// a session joining mid-countdown is caught up from the shared
	// store instead of waiting for the next tick
	late := dial(t, srv, "/ws/room/demo/timer")
	frame := readFrame(t, late)
	assert.Equal(t, "timer", frame["action"])
	assert.InDelta(t, 600, frame["time_left"], 2)
}

func TestRouteValidation(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/ws/room/demo/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws/room/bad.name!")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	dial(t, srv, "/ws/room/demo?username=alice")
	dial(t, srv, "/ws/room/demo/vote")

	var stats struct {
		TotalSessions int            `json:"total_sessions"`
		Groups        map[string]int `json:"groups"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/ws/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return false
		}
		return stats.TotalSessions == 2
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, 1, stats.Groups["room_demo"])
	assert.Equal(t, 1, stats.Groups["vote_demo"])
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

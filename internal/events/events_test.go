package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvent struct{}

func (fakeEvent) event() {}

func TestEncode(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "user join",
			ev:   UserJoin{Username: "alice"},
			want: `{"type":"user_join","username":"alice"}`,
		},
		{
			name: "user leave",
			ev:   UserLeave{Username: "Anonymous"},
			want: `{"type":"user_leave","username":"Anonymous"}`,
		},
		{
			name: "chat message",
			ev:   ChatMessage{Username: "alice", Message: "gg", Timestamp: ts},
			want: `{"type":"chat_message","message":"gg","username":"alice","timestamp":"2025-06-01T12:30:00Z"}`,
		},
		{
			name: "timer update",
			ev:   TimerUpdate{TimeLeft: 42},
			want: `{"action":"timer","time_left":42}`,
		},
		{
			name: "vote update",
			ev:   VoteUpdate{Vote: json.RawMessage(`{"meme_id":7}`)},
			want: `{"action":"vote","vote":{"meme_id":7}}`,
		},
		{
			name: "meme update",
			ev:   MemeUpdate{Update: json.RawMessage(`"new caption"`)},
			want: `{"action":"update_meme","meme_update":"new caption"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(frame))
		})
	}
}

func TestEncode_UnknownEvent(t *testing.T) {
	_, err := Encode(fakeEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestErrorFrame(t *testing.T) {
	assert.JSONEq(t, `{"error":"Invalid vote value"}`, string(ErrorFrame("Invalid vote value")))
}

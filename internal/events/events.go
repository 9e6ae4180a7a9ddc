package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one broadcast frame fanned out to every member of a group.
// Events are transient: they exist only for the duration of the fan-out
// and are never persisted.
type Event interface {
	event()
}

// UserJoin announces a participant joining a room's main channel.
type UserJoin struct {
	Username string
}

// UserLeave announces a participant leaving a room's main channel.
type UserLeave struct {
	Username string
}

// ChatMessage carries a chat line with the sender's identity and a
// server-assigned timestamp.
type ChatMessage struct {
	Username  string
	Message   string
	Timestamp time.Time
}

// TimerUpdate carries the remaining whole seconds of a room countdown.
type TimerUpdate struct {
	TimeLeft int
}

// VoteUpdate relays a vote payload verbatim.
type VoteUpdate struct {
	Vote json.RawMessage
}

// MemeUpdate relays a meme-update payload verbatim.
type MemeUpdate struct {
	Update json.RawMessage
}

func (UserJoin) event()    {}
func (UserLeave) event()   {}
func (ChatMessage) event() {}
func (TimerUpdate) event() {}
func (VoteUpdate) event()  {}
func (MemeUpdate) event()  {}

// Encode serializes an event into its wire frame. The switch is the
// single serialization boundary for the event union; an event kind
// without a case here is a bug and is reported as an error.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case UserJoin:
		return json.Marshal(struct {
			Type     string `json:"type"`
			Username string `json:"username"`
		}{"user_join", e.Username})

	case UserLeave:
		return json.Marshal(struct {
			Type     string `json:"type"`
			Username string `json:"username"`
		}{"user_leave", e.Username})

	case ChatMessage:
		return json.Marshal(struct {
			Type      string `json:"type"`
			Message   string `json:"message"`
			Username  string `json:"username"`
			Timestamp string `json:"timestamp"`
		}{"chat_message", e.Message, e.Username, e.Timestamp.Format(time.RFC3339)})

	case TimerUpdate:
		return json.Marshal(struct {
			Action   string `json:"action"`
			TimeLeft int    `json:"time_left"`
		}{"timer", e.TimeLeft})

	case VoteUpdate:
		return json.Marshal(struct {
			Action string          `json:"action"`
			Vote   json.RawMessage `json:"vote"`
		}{"vote", e.Vote})

	case MemeUpdate:
		return json.Marshal(struct {
			Action string          `json:"action"`
			Update json.RawMessage `json:"meme_update"`
		}{"update_meme", e.Update})

	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
}

// ErrorFrame builds the sender-only error frame. Error frames are
// always unicast back to the offending connection, never broadcast.
func ErrorFrame(msg string) []byte {
	frame, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{msg})
	return frame
}

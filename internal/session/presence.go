package session

import (
	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/events"
)

// Broadcaster publishes a frame to every member of a group.
type Broadcaster interface {
	Broadcast(group string, frame []byte) error
}

// Tracker derives join and leave notifications from main sub-channel
// lifecycle transitions and publishes them to the room's main group.
// Both notifications are best-effort.
type Tracker struct {
	bcast  Broadcaster
	logger zerolog.Logger
}

// NewTracker creates a presence tracker publishing through bcast.
func NewTracker(bcast Broadcaster, logger zerolog.Logger) *Tracker {
	return &Tracker{bcast: bcast, logger: logger}
}

// Joined announces a participant entering a room.
func (t *Tracker) Joined(room, username string) {
	t.publish(room, events.UserJoin{Username: username})
}

// Left announces a participant leaving a room.
func (t *Tracker) Left(room, username string) {
	t.publish(room, events.UserLeave{Username: username})
}

func (t *Tracker) publish(room string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		t.logger.Error().Err(err).Str("room", room).Msg("encode presence event")
		return
	}
	if err := t.bcast.Broadcast(KindMain.Group(room), frame); err != nil {
		t.logger.Debug().Err(err).Str("room", room).Msg("presence broadcast dropped")
	}
}

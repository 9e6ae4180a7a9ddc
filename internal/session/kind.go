package session

// Kind is the sub-channel a connection is opened against. Its value is
// also the group-name prefix, so the main channel uses "room" to match
// the wire contract's "room_{name}" groups.
type Kind string

const (
	KindMain  Kind = "room"
	KindTimer Kind = "timer"
	KindVote  Kind = "vote"
	KindMeme  Kind = "meme"
)

// Group returns the broadcast group name for this kind in a room.
func (k Kind) Group(room string) string {
	return string(k) + "_" + room
}

// Package registry maps group names to their currently subscribed
// members and routes broadcast frames to every member of a group.
package registry

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/backplane"
)

// Member is one deliverable endpoint inside a group, typically a live
// connection session. Deliver must not block; it reports an error when
// the member can no longer accept frames.
type Member interface {
	ID() string
	Deliver(frame []byte) error
}

// Registry tracks group membership for this process and bridges it to
// the cross-process backplane. Groups are named "{kind}_{room}"; the
// first local member of a group opens the backplane subscription, so a
// member that joins and then broadcasts always receives its own frame.
type Registry struct {
	backplane backplane.Backplane
	logger    zerolog.Logger

	mu     sync.Mutex
	groups map[string]*group
}

type group struct {
	members map[string]Member
	sub     backplane.Subscription
}

// New creates a registry on top of the given backplane.
func New(bp backplane.Backplane, logger zerolog.Logger) *Registry {
	return &Registry{
		backplane: bp,
		logger:    logger,
		groups:    make(map[string]*group),
	}
}

func subject(group string) string {
	return "rooms." + group
}

// Join adds a member to a group. Joining a group the member already
// belongs to is a no-op.
func (r *Registry) Join(name string, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		sub, err := r.backplane.Subscribe(subject(name), func(data []byte) {
			r.fanout(name, data)
		})
		if err != nil {
			return fmt.Errorf("join group %s: %w", name, err)
		}
		g = &group{members: make(map[string]Member), sub: sub}
		r.groups[name] = g
	}
	g.members[m.ID()] = m

	r.logger.Debug().
		Str("group", name).
		Str("member", m.ID()).
		Int("members", len(g.members)).
		Msg("member joined group")
	return nil
}

// Leave removes a member from a group. Removing a non-member is a
// no-op. The backplane subscription is torn down when the last local
// member leaves.
func (r *Registry) Leave(name, memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		return
	}
	if _, ok := g.members[memberID]; !ok {
		return
	}
	delete(g.members, memberID)

	r.logger.Debug().
		Str("group", name).
		Str("member", memberID).
		Int("members", len(g.members)).
		Msg("member left group")

	if len(g.members) == 0 {
		if err := g.sub.Unsubscribe(); err != nil {
			r.logger.Warn().Err(err).Str("group", name).Msg("unsubscribe failed")
		}
		delete(r.groups, name)
	}
}

// Broadcast publishes a frame to every member of a group, across all
// processes, including the originating member.
func (r *Registry) Broadcast(name string, frame []byte) error {
	if err := r.backplane.Publish(subject(name), frame); err != nil {
		return fmt.Errorf("broadcast to %s: %w", name, err)
	}
	return nil
}

// fanout delivers one backplane frame to every local member of the
// group. A member that fails delivery is removed so a dead connection
// never blocks the rest of the group.
func (r *Registry) fanout(name string, frame []byte) {
	r.mu.Lock()
	g, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	members := make([]Member, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m)
	}
	r.mu.Unlock()

	for _, m := range members {
		if err := m.Deliver(frame); err != nil {
			r.logger.Warn().
				Err(err).
				Str("group", name).
				Str("member", m.ID()).
				Msg("delivery failed, removing member")
			r.Leave(name, m.ID())
		}
	}
}

// GroupSizes reports the local member count per group.
func (r *Registry) GroupSizes() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes := make(map[string]int, len(r.groups))
	for name, g := range r.groups {
		sizes[name] = len(g.members)
	}
	return sizes
}

// Package backplane abstracts the publish/subscribe transport that
// carries group frames between server processes. Every broadcast goes
// through the backplane, even when the subscribers live in the same
// process, so adding a second server never changes delivery semantics.
package backplane

// Backplane publishes frames to subjects and delivers them to every
// subscriber of that subject, local or remote. Implementations must
// preserve per-subject ordering to each individual subscriber.
type Backplane interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
	Close()
}

// Subscription is a handle for one active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

package session

import (
	"fmt"
	"sync"

	"github.com/taskora/taskora-go/core"
)

type EventKind string

const (
	SignedIn  EventKind = "SIGNED_IN"
	SignedOut EventKind = "SIGNED_OUT"
)

// Event is a session-state transition notification. SignedIn carries
// the raw backend session and the resolved Profile; SignedOut carries
// nothing.
type Event struct {
	Kind    EventKind
	Session *Session
	Profile *Profile
}

type subscriber struct {
	id int
	fn func(Event)
}

// subscriberList is an append-only-until-removed, ordered registry of
// session event callbacks.
type subscriberList struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// add registers fn and returns a handle that removes exactly that
// registration. The handle is idempotent.
func (l *subscriberList) add(fn func(Event)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscriber{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subs {
			if sub.id == id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

// emit delivers ev synchronously to all current subscribers in
// registration order. A panicking callback is logged and must not
// prevent delivery to the remaining subscribers.
func (l *subscriberList) emit(log core.Logger, ev Event) {
	l.mu.Lock()
	subs := make([]subscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error(fmt.Sprintf("session event subscriber panicked: %v", r))
				}
			}()
			sub.fn(ev)
		}()
	}
}

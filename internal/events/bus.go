// Package events is the typed in-tab broadcast channel. Each topic carries exactly one payload
// type, so publishers and subscribers agree on the shape at compile time.
package events

import (
	"log/slog"
	"sync"
)

// OrganizationChanged announces the newly active organization.
// Remote is set when the change was observed from another tab rather than made here.
type OrganizationChanged struct {
	ID     string
	Name   string
	Remote bool
}

// SessionEnded announces that the tab lost its authenticated session.
type SessionEnded struct {
	Reason string
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is a transient, non-blocking user-visible message.
type Notification struct {
	Level   Level
	Message string
}

// Topic is a synchronous fan-out for one payload type.
type Topic[T any] struct {
	name string
	log  *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(T)
}

func NewTopic[T any](name string, log *slog.Logger) *Topic[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Topic[T]{name: name, log: log, subs: map[int]func(T){}}
}

// Subscribe registers fn and returns the function that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// Publish delivers v to every subscriber before returning. A panicking subscriber is logged
// and does not stop delivery to the others.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	fns := make([]func(T), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.RUnlock()

	for _, fn := range fns {
		t.deliver(fn, v)
	}
}

func (t *Topic[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("events: subscriber panicked", "topic", t.name, "panic", r)
		}
	}()
	fn(v)
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Bus groups the topics one tab broadcasts on.
type Bus struct {
	OrganizationChanged *Topic[OrganizationChanged]
	SessionEnded        *Topic[SessionEnded]
	Notifications       *Topic[Notification]
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		OrganizationChanged: NewTopic[OrganizationChanged]("organization_changed", log),
		SessionEnded:        NewTopic[SessionEnded]("session_ended", log),
		Notifications:       NewTopic[Notification]("notification", log),
	}
}

// Notify publishes a notification.
func (b *Bus) Notify(level Level, msg string) {
	b.Notifications.Publish(Notification{Level: level, Message: msg})
}

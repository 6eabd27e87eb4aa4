// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package events is the lifecycle event emitter userservice broadcasts
through. It is an injected collaborator, never process-wide state: every
userservice.Service takes an [Emitter] at construction, and a process
that wants no listeners at all can pass [Noop].
*/
package events

import (
	"sync"
	"time"
)

// Name is one of the fixed lifecycle events userservice emits.
type Name string

const (
	Signup         Name = "signup"
	Login          Name = "login"
	Refresh        Name = "refresh"
	Logout         Name = "logout"
	LogoutAll      Name = "logout-all"
	PasswordReset  Name = "password-reset"
	PasswordChange Name = "password-change"
	ForgotPassword Name = "forgot-password"
	EmailVerified  Name = "email-verified"
	EmailChanged   Name = "email-changed"
	PhoneChanged   Name = "phone-changed"
	UserDBAdded    Name = "user-db-added"
	UserDBRemoved  Name = "user-db-removed"

	// Activity is not in spec.md §6's named catalogue; it is emitted
	// alongside every logActivity call so an external audit sink can
	// subscribe without re-deriving activity from the lifecycle events
	// above.
	Activity Name = "activity"
)

// Event is one occurrence of a lifecycle event.
type Event struct {
	Name      Name
	UserID    string
	Provider  string
	Timestamp time.Time
	Data      map[string]any
}

// Handler receives events. Handlers must not panic back into the core;
// Bus recovers and drops a panicking handler's call rather than letting
// it propagate.
type Handler func(Event)

// Emitter is the narrow interface userservice depends on.
type Emitter interface {
	Emit(Event)
}

// Bus is an in-process, synchronous fan-out [Emitter]. Subscribers run
// in Emit's goroutine, in registration order; a panicking subscriber is
// recovered and does not affect Emit's caller or other subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus returns an Emitter with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for every event. Returns an unsubscribe
// function.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, handler)
	index := len(b.handlers) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if index < len(b.handlers) {
			b.handlers[index] = nil
		}
	}
}

// Emit broadcasts event to every live subscriber.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		invoke(handler, event)
	}
}

func invoke(handler Handler, event Event) {
	defer func() { _ = recover() }()
	handler(event)
}

var _ Emitter = (*Bus)(nil)

// Noop discards every event. Useful for tests and for a process that
// has no audit sink configured.
var Noop Emitter = noopEmitter{}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// Package event provides the in-process event bus that couples account
// registration to API-key issuance. Delivery is synchronous: publishers see
// subscriber failures, so a failed issuance fails the registration that
// triggered it instead of being dropped.
package event

import (
	"context"
	"sync"
)

// AccountRegistered is published after an owner account has been durably
// created.
type AccountRegistered struct {
	AccountID int64
	UserName  string
}

// RegistrationHandler reacts to an AccountRegistered event. Returning an
// error aborts the publish and propagates to the registration caller.
type RegistrationHandler func(ctx context.Context, ev AccountRegistered) error

// Bus dispatches typed events to subscribers in subscription order.
type Bus struct {
	mu         sync.RWMutex
	registered []RegistrationHandler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeAccountRegistered adds a handler for AccountRegistered events.
func (b *Bus) SubscribeAccountRegistered(h RegistrationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = append(b.registered, h)
}

// PublishAccountRegistered delivers the event to every subscriber in order,
// stopping at the first error.
func (b *Bus) PublishAccountRegistered(ctx context.Context, ev AccountRegistered) error {
	b.mu.RLock()
	handlers := make([]RegistrationHandler, len(b.registered))
	copy(handlers, b.registered)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

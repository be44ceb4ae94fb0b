package prefs

import "sync"

// Account tracks the connected identity and exposes its preferences.
// Switching identity changes all three stores at once.
type Account struct {
	store *Store

	mu       sync.RWMutex
	identity string
}

func NewAccount(store *Store, identity string) *Account {
	return &Account{store: store, identity: identity}
}

// Switch connects identity; "" disconnects.
func (a *Account) Switch(identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = identity
}

func (a *Account) Identity() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// View returns the stores of the identity connected at call time.
func (a *Account) View() View {
	return a.store.For(a.Identity())
}

func (a *Account) Subscriptions() Subscriptions { return a.View().Subscriptions }
func (a *Account) Agents() Agents               { return a.View().Agents }
func (a *Account) Ethos() Ethos                 { return a.View().Ethos }

package server

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/session"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// SessionController is the slice of the session runner the HTTP surface
// needs. Tests substitute a fake.
type SessionController interface {
	Status() session.StatusReport
	Stop()
	Restart()
	Say(text string) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db         *sql.DB
	bot        SessionController
	ctx        context.Context
	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, db *sql.DB, bot SessionController) *Handlers {
	return &Handlers{
		db:         db,
		bot:        bot,
		ctx:        ctx,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Refusing new states beyond the cap fails the OAuth flow, which beats
	// unbounded memory growth.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state token, reporting whether
// it was present and unexpired.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	expiry, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(expiry)
}

package handlers

import (
	"sync"
	"time"

	"ai-anchor-studio/internal/studio"
)

// Awaiting flags: what the next plain-text message from the user means.
const (
	awaitNothing = ""
	awaitName    = "name"
	awaitPrompt  = "prompt"
	awaitDetails = "details"
)

// uiState is the wizard-only state layered on top of a studio session.
type uiState struct {
	Menu        string // "main" | a field menu key | "templates"
	Awaiting    string
	PendingSave string // name held while waiting for overwrite confirmation
	MessageID   int
	UpdatedAt   time.Time
}

type sessionKey struct {
	ChatID int64
	UserID int64
}

type entry struct {
	sess *studio.Session
	ui   uiState
}

// stateStore keys studio sessions and their wizard state per (chat, user).
type stateStore struct {
	mu         sync.Mutex
	m          map[sessionKey]*entry
	newSession func() *studio.Session
}

func newStateStore(newSession func() *studio.Session) *stateStore {
	return &stateStore{
		m:          make(map[sessionKey]*entry),
		newSession: newSession,
	}
}

func (s *stateStore) get(chatID, userID int64) (*studio.Session, uiState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(chatID, userID)
	return e.sess, e.ui
}

// update applies fn to the wizard state and returns the session plus the
// updated state copy.
func (s *stateStore) update(chatID, userID int64, fn func(*uiState)) (*studio.Session, uiState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(&e.ui)
	}
	e.ui.UpdatedAt = time.Now()
	return e.sess, e.ui
}

func (s *stateStore) getOrCreateLocked(chatID, userID int64) *entry {
	key := sessionKey{ChatID: chatID, UserID: userID}
	if e, ok := s.m[key]; ok {
		return e
	}
	e := &entry{
		sess: s.newSession(),
		ui:   uiState{Menu: "main", UpdatedAt: time.Now()},
	}
	s.m[key] = e
	return e
}

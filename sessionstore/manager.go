package sessionstore

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/medflowai/engine/types"
)

// Manager scopes a Store to a single session ID, mirroring the original
// ContextManager: a thin per-session view over a shared backend.
type Manager struct {
	sessionID string
	store     Store
}

// NewManager builds a Manager for the given session against the given
// store. An empty sessionID is rejected, matching ContextManager's guard.
func NewManager(sessionID string, store Store) (*Manager, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id cannot be empty")
	}
	return &Manager{sessionID: sessionID, store: store}, nil
}

// NewTemporaryManager mints a fresh random session ID, for callers that
// don't have one yet (the orchestrator's "temp_session_" fallback).
func NewTemporaryManager(store Store) *Manager {
	return &Manager{sessionID: "temp_session_" + uuid.NewString(), store: store}
}

// SessionID returns the session this manager is scoped to.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// AddMessage appends a message to this session's history.
func (m *Manager) AddMessage(role, content string) {
	if role == "" || content == "" {
		return
	}
	m.store.AddToHistory(m.sessionID, types.Message{Role: role, Content: content})
}

// History returns up to limit of the most recent messages (0 means all).
func (m *Manager) History(limit int) []types.Message {
	history := m.store.GetHistory(m.sessionID)
	if limit > 0 && limit < len(history) {
		return history[len(history)-limit:]
	}
	return history
}

// Set stores a session-scoped variable.
func (m *Manager) Set(key string, value any) {
	m.store.SetVariable(m.sessionID, key, value)
}

// Get retrieves a session-scoped variable, returning def if unset.
func (m *Manager) Get(key string, def any) any {
	if v, ok := m.store.GetVariable(m.sessionID, key); ok {
		return v
	}
	return def
}

// Clear wipes this session's history and variables from the backing store.
func (m *Manager) Clear() {
	m.store.ClearSession(m.sessionID)
}

package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is a session's place in the matchmaking lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusQueued  Status = "queued"
	StatusInLobby Status = "in_lobby"
	StatusInGame  Status = "in_game"
)

// Identity is the authenticated user bound to a session.
type Identity struct {
	UserID   string
	Username string
}

// Conn is the outbound half of a client connection. *websocket.Conn
// satisfies it; tests inject fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session tracks one connected participant. A session belongs to at most one
// of {queue, lobby, match}: MatchID and LobbyCode are never both set.
type Session struct {
	ID          string
	Conn        Conn
	Status      Status
	Identity    *Identity
	MatchID     string
	LobbyCode   string
	PlayerIndex int // index within the match, -1 outside a match
}

// Authenticated reports whether an identity has been bound.
func (s *Session) Authenticated() bool {
	return s.Identity != nil
}

// Username returns the bound username, or empty when unauthenticated.
func (s *Session) Username() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Username
}

// ResetToPending clears all matchmaking/match bindings.
func (s *Session) ResetToPending() {
	s.Status = StatusPending
	s.MatchID = ""
	s.LobbyCode = ""
	s.PlayerIndex = -1
}

// Registry tracks every connected session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a new pending session for the connection.
func (r *Registry) Create(conn Conn) *Session {
	s := &Session{
		ID:          "sess_" + uuid.NewString(),
		Conn:        conn,
		Status:      StatusPending,
		PlayerIndex: -1,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Debug("session created", zap.String("session_id", s.ID))
	return s
}

// Remove deletes a session from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	r.logger.Debug("session removed", zap.String("session_id", id))
}

// Len returns the number of connected sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of every connected session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

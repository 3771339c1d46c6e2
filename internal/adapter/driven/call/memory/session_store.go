package memory

import (
	"fmt"
	"sync"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

// SessionStore implements port.SessionStore. The session map and the busy
// index are guarded by one mutex so they can only change together.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*domain.CallSession
	busy     map[domain.UserID]domain.SessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.CallSession),
		busy:     make(map[domain.UserID]domain.SessionID),
	}
}

func (s *SessionStore) Insert(session *domain.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionExists, session.ID)
	}
	if _, ok := s.busy[session.CallerUserID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrUserBusy, session.CallerUserID)
	}
	if _, ok := s.busy[session.CalleeUserID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrUserBusy, session.CalleeUserID)
	}

	s.sessions[session.ID] = session
	s.busy[session.CallerUserID] = session.ID
	s.busy[session.CalleeUserID] = session.ID
	return nil
}

func (s *SessionStore) Get(id domain.SessionID) (*domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Remove drops the session and unindexes both participants. A participant is
// only unindexed while they still map to this session id, so Remove stays
// idempotent even when the user has since entered another call.
func (s *SessionStore) Remove(id domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	if s.busy[session.CallerUserID] == id {
		delete(s.busy, session.CallerUserID)
	}
	if s.busy[session.CalleeUserID] == id {
		delete(s.busy, session.CalleeUserID)
	}
}

func (s *SessionStore) FindByUser(userID domain.UserID) (*domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.busy[userID]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) IsBusy(userID domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.busy[userID]
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

package memory

import (
	"context"
	"sync"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

// StatusChange is one recorded lifecycle transition.
type StatusChange struct {
	SessionID domain.SessionID
	Status    domain.CallStatus
	Reason    domain.HangupReason
}

// CallLog keeps the session log in process memory. Used in tests and when no
// database is configured.
type CallLog struct {
	mu      sync.Mutex
	created []domain.CallSession
	changes []StatusChange
}

func NewCallLog() *CallLog {
	return &CallLog{}
}

func (l *CallLog) RecordCreated(ctx context.Context, session domain.CallSession) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.created = append(l.created, session)
	return nil
}

func (l *CallLog) RecordStatusChange(ctx context.Context, id domain.SessionID, status domain.CallStatus, reason domain.HangupReason) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.changes = append(l.changes, StatusChange{SessionID: id, Status: status, Reason: reason})
	return nil
}

func (l *CallLog) Created() []domain.CallSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.CallSession, len(l.created))
	copy(out, l.created)
	return out
}

func (l *CallLog) Changes() []StatusChange {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]StatusChange, len(l.changes))
	copy(out, l.changes)
	return out
}

package port

import "github.com/vibelinechat/vibeline/internal/core/domain"

// SessionStore holds the authoritative record of every active call session
// plus the user->session busy index. Insert and Remove keep both structures
// consistent: a user is busy exactly while a non-terminal session involving
// them is stored.
type SessionStore interface {
	Insert(session *domain.CallSession) error
	Get(id domain.SessionID) (*domain.CallSession, bool)
	Remove(id domain.SessionID)
	FindByUser(userID domain.UserID) (*domain.CallSession, bool)
	IsBusy(userID domain.UserID) bool
	Len() int
}

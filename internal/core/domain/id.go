package domain

import (
	"github.com/google/uuid"
)

// UserID is the identity a connection authenticates as. It is opaque to the
// signaling layer; the identity service owns its format.
type UserID string

func (id UserID) String() string {
	return string(id)
}

type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (id SessionID) String() string {
	return string(id)
}

package port

import (
	"github.com/vibelinechat/vibeline/internal/core/domain"
)

// Presence is the coordinator's view of who is reachable right now.
// Broadcast is best-effort: delivering to zero connections is not an error,
// the caller interprets it as the user being offline.
type Presence interface {
	IsOnline(userID domain.UserID) bool
	Broadcast(userID domain.UserID, event domain.Event)
}

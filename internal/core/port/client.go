package port

import "github.com/vibelinechat/vibeline/internal/core/domain"

// Client is one live authenticated transport handle. A user may hold several
// at once (multiple devices or tabs).
type Client interface {
	ID() string
	UserID() domain.UserID
	Send(event domain.Event) error
	Close() error
}

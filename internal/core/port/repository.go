package port

import (
	"context"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

// CallLog mirrors session lifecycle events into durable storage. Writes are
// best-effort relative to the in-memory state; a failed write must never
// abort a signaling operation.
type CallLog interface {
	RecordCreated(ctx context.Context, session domain.CallSession) error
	RecordStatusChange(ctx context.Context, id domain.SessionID, status domain.CallStatus, reason domain.HangupReason) error
}

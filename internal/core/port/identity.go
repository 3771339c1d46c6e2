package port

import "github.com/vibelinechat/vibeline/internal/core/domain"

// IdentityVerifier authenticates a connection handshake. Called once per
// connection at gateway admission; failure closes the connection.
type IdentityVerifier interface {
	VerifyConnection(credential string) (domain.UserID, error)
}

// TransportCredentials issues media-channel authorization tokens. Consumed by
// the coordinator once a session is accepted; not part of the state machine.
type TransportCredentials interface {
	IssueTransportCredential(channel string, userID domain.UserID) (string, error)
}

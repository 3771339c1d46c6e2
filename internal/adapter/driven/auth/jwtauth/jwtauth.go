package jwtauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

const clockSkewLeeway = 30 * time.Second

// Manager verifies connection tokens issued by the auth service and issues
// short-lived media transport credentials. Implements port.IdentityVerifier
// and port.TransportCredentials.
type Manager struct {
	secret        []byte
	issuer        string
	credentialTTL time.Duration
	now           func() time.Time
}

func NewManager(secret, issuer string, credentialTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if credentialTTL <= 0 {
		credentialTTL = time.Hour
	}
	return &Manager{
		secret:        []byte(secret),
		issuer:        issuer,
		credentialTTL: credentialTTL,
		now:           time.Now,
	}, nil
}

// VerifyConnection parses and validates the handshake token and returns the
// user identity it carries.
func (m *Manager) VerifyConnection(credential string) (domain.UserID, error) {
	if credential == "" {
		return "", errors.New("missing connection token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(credential, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid connection token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("connection token carries no subject")
	}
	return domain.UserID(claims.Subject), nil
}

type transportClaims struct {
	jwt.RegisteredClaims
	Channel string `json:"channel"`
}

// IssueTransportCredential signs a token that authorizes userID on the given
// media channel for the credential TTL.
func (m *Manager) IssueTransportCredential(channel string, userID domain.UserID) (string, error) {
	if channel == "" {
		return "", errors.New("channel is required")
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := m.now()
	claims := transportClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.credentialTTL)),
			ID:        uuid.NewString(),
		},
		Channel: channel,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

package domain

import "errors"

var (
	ErrValidation      = errors.New("invalid signaling request")
	ErrSessionNotFound = errors.New("call session not found")
	ErrInvalidStatus   = errors.New("call status does not allow this operation")
	ErrSessionExists   = errors.New("call session id already in use")
	ErrUserBusy        = errors.New("user already participates in a call")
	ErrIDExhausted     = errors.New("could not allocate a unique call session id")
)

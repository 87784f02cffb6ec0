package auth

import "errors"

var (
	ErrNotFound            = errors.New("auth: not found")
	ErrAlreadyExists       = errors.New("auth: already exists")
	ErrInvalidInput        = errors.New("auth: invalid input")
	ErrUnauthorized        = errors.New("auth: unauthorized")
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrRegistrationPending = errors.New("auth: registration pending approval")
)

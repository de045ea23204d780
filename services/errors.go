package services

import "errors"

// Boundary error taxonomy. Handlers map these onto HTTP statuses and
// socket error events; nothing below the boundary panics.
var (
	ErrNotFound             = errors.New("not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUnauthorized         = errors.New("unauthorized conversation access")
	ErrForbiddenPair        = errors.New("conversation not allowed between these roles")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnlinkedCompany      = errors.New("account is not linked to a company")
	ErrConflict             = errors.New("conflicting concurrent write")
)

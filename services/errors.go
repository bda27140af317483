package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrListingUnavailable = errors.New("listing is not available")
	ErrClaimResolved      = errors.New("claim has already been resolved")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidLocation    = errors.New("invalid location coordinates")
	ErrInvalidType        = errors.New("invalid notification type")
	ErrInvalidRole        = errors.New("invalid role")
	ErrEmailTaken         = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidImage       = errors.New("invalid image")
	ErrAIUnavailable      = errors.New("ai rating service unavailable")
)

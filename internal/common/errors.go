// Package common defines shared constants and sentinel errors used across
// the filestore engine, its HTTP surface and the remote bucket client.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Bucket policy errors.
	ErrorPermissionDenied = errors.New("permission denied")
	ErrorMisconfigured    = errors.New("filestore not available on this component")
	ErrorNotImplemented   = errors.New("not implemented")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

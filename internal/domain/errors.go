package domain

import "errors"

var (
	// ErrInvalidRequest marks analysis inputs that fail validation before any
	// remote work is issued.
	ErrInvalidRequest = errors.New("invalid analysis request")

	// ErrInvalidFeature marks a single AOI feature that cannot be used. Such
	// features are skipped with a warning.
	ErrInvalidFeature = errors.New("invalid aoi feature")

	// ErrNoImagery is returned when a filtered imagery collection is empty.
	ErrNoImagery = errors.New("no imagery available")

	// ErrUnauthorized is returned when the remote engine rejects the credentials.
	ErrUnauthorized = errors.New("remote engine rejected credentials")

	// ErrRemote wraps any other remote computation failure.
	ErrRemote = errors.New("remote computation failed")
)

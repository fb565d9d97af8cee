package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrSyncInProgress is returned when a pass or a guarded mutation is
	// attempted while another pass holds the engine.
	ErrSyncInProgress = errors.New("sync in progress")
	ErrNotConfigured  = errors.New("not configured")
)

// ABOUTME: Sentinel errors shared by both storage backends.
// ABOUTME: Callers match them with errors.Is after the usual %w wrapping.
package storage

import "errors"

var (
	// ErrStorageUnavailable means no backend could be opened.
	// User-facing surfaces report it as "history unavailable".
	ErrStorageUnavailable = errors.New("workout history storage unavailable")

	// ErrTransactionFailure wraps a read or write the backend rejected.
	// It is never retried automatically.
	ErrTransactionFailure = errors.New("storage transaction failed")

	// ErrInvalidRecord wraps validation failures on Add and bad query arguments.
	ErrInvalidRecord = errors.New("invalid workout record")

	// ErrSchemaTooNew means the database was written by a newer version.
	ErrSchemaTooNew = errors.New("database schema is newer than this binary")
)

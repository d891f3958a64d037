package sqlgen

import "errors"

var (
	// ErrNoColumns is returned when an insert or update names no columns.
	ErrNoColumns = errors.New("no columns specified")

	// ErrValueCountMismatch is returned when a single record has a different
	// number of values than columns.
	ErrValueCountMismatch = errors.New("column/value count mismatch")

	// ErrRecordCountMismatch is returned when a batch declares a different
	// number of records than it carries.
	ErrRecordCountMismatch = errors.New("record count mismatch")

	// ErrMalformedBatchEntry is returned when a batch entry is not a slice or
	// does not hold one value per column.
	ErrMalformedBatchEntry = errors.New("malformed batch entry")

	// ErrBatchNotSupported is returned for multi-record updates and deletes.
	ErrBatchNotSupported = errors.New("multi-record statement not supported")

	// ErrNoKeysProvided is returned for updates and deletes without keys.
	ErrNoKeysProvided = errors.New("no keys provided")
)

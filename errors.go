package ledgrator

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMigrationFileName    = errors.New("invalid migration file name")
	ErrMigrationsDirectoryNotFound = errors.New("migrations directory not found")
	ErrDuplicateVersion            = errors.New("duplicate migration version")
	ErrLedgerAheadOfFilesystem     = errors.New("more migrations applied than present on the file system")
	ErrMigrationMissingLocally     = errors.New("local migration not found")
	ErrChecksumMismatch            = errors.New("migration checksum mismatch")
	ErrNotFound                    = errors.New("record not found")
)

// ChecksumMismatchError reports drift between an applied migration and the
// script currently on disk.
type ChecksumMismatchError struct {
	Version string
	Stored  string
	Current string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: version %q (%s vs %s)", ErrChecksumMismatch, e.Version, e.Stored, e.Current)
}

func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

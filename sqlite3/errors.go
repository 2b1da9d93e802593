package sqlite3

import "errors"

// Sentinel errors for the conditions spec'd out in the file-format reader.
// Callers distinguish them with errors.Is; some (InvalidDatabaseError,
// InvalidWALError) carry extra context and are matched with errors.As.
var (
	ErrShortRead          = errors.New("sqlite3: short read")
	ErrTruncated          = errors.New("sqlite3: truncated structure")
	ErrOverflowTruncated  = errors.New("sqlite3: overflow chain truncated before expected length")
	ErrChecksumMismatch   = errors.New("sqlite3: WAL frame checksum mismatch")
	ErrTextDecode         = errors.New("sqlite3: text could not be decoded in declared encoding")
	ErrUnsupportedPage    = errors.New("sqlite3: unsupported or unknown b-tree page type")
	ErrNoSuchTable        = errors.New("sqlite3: no such table")
	ErrInvalidDatabase    = errors.New("sqlite3: invalid database image")
	ErrInvalidWAL         = errors.New("sqlite3: invalid WAL image")
)

// InvalidDatabaseError wraps ErrInvalidDatabase with the offending detail,
// e.g. a bad magic string or an impossible header field.
type InvalidDatabaseError struct {
	Reason string
}

func (e *InvalidDatabaseError) Error() string { return "sqlite3: invalid database: " + e.Reason }
func (e *InvalidDatabaseError) Unwrap() error  { return ErrInvalidDatabase }

func invalidDatabase(reason string) error { return &InvalidDatabaseError{Reason: reason} }

// InvalidWALError wraps ErrInvalidWAL with the offending detail.
type InvalidWALError struct {
	Reason string
}

func (e *InvalidWALError) Error() string { return "sqlite3: invalid WAL: " + e.Reason }
func (e *InvalidWALError) Unwrap() error  { return ErrInvalidWAL }

func invalidWAL(reason string) error { return &InvalidWALError{Reason: reason} }

package lp

import "errors"

var (
	// ErrUnparseableURL marks a link that is neither an album nor a playlist.
	ErrUnparseableURL = errors.New("unparseable spotify url")
	// ErrMetadataFetch marks a failed or unrecognized metadata lookup.
	ErrMetadataFetch = errors.New("metadata fetch failed")
	// ErrFieldCountMismatch marks a column list and value list of different lengths.
	ErrFieldCountMismatch = errors.New("field count mismatch")
	// ErrDuplicate marks an insert for a message id that is already recorded.
	ErrDuplicate = errors.New("message already recorded")

	ErrUnknownCommand  = errors.New("unknown command")
	ErrTooFewArgs      = errors.New("too few arguments")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMemberNotFound  = errors.New("member not found")

	// ErrPersistence wraps store failures that stop the current operation.
	ErrPersistence = errors.New("persistence error")
	// ErrNothingToWatch is returned when no configured channel or role exists in the guild.
	ErrNothingToWatch = errors.New("no watched channels or roles resolved")
)

// ErrorClass groups pipeline errors by how the event loop treats them.
type ErrorClass int

const (
	// ErrorClassRecoverable drops the current message and carries on.
	ErrorClassRecoverable ErrorClass = iota
	// ErrorClassPersistence stops the current operation, including a running backfill.
	ErrorClassPersistence
	// ErrorClassFatal is only raised at startup.
	ErrorClassFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRecoverable:
		return "recoverable"
	case ErrorClassPersistence:
		return "persistence"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError maps an error to its class. Errors that match no sentinel are
// treated as recoverable so one bad message never stops the loop.
func ClassifyError(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassRecoverable
	case errors.Is(err, ErrNothingToWatch):
		return ErrorClassFatal
	case errors.Is(err, ErrPersistence):
		return ErrorClassPersistence
	default:
		return ErrorClassRecoverable
	}
}

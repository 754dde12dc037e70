// Package cerrors defines the typed error kinds produced by the cache core.
package cerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories the cache core can raise.
type Kind int

const (
	// NoWritableCache is raised when writable_caches() finds no usable root.
	NoWritableCache Kind = iota
	// CorruptArchive is raised when extraction fails with a read/EOF error.
	CorruptArchive
	// IntegrityMismatch is raised when a fetched tarball's md5 does not match.
	IntegrityMismatch
	// MissingMetadata is raised when neither a tarball nor index.json back an
	// extracted-looking directory.
	MissingMetadata
	// EntryNotFound is raised by CacheIndex.Get with no default supplied.
	EntryNotFound
	// PlanUnsatisfiable is raised when rule R3 is selected but ref.URL is empty.
	PlanUnsatisfiable
	// PartialFailureBatch wraps one or more per-ref failures from a batch run.
	PartialFailureBatch
)

func (k Kind) String() string {
	switch k {
	case NoWritableCache:
		return "NoWritableCache"
	case CorruptArchive:
		return "CorruptArchive"
	case IntegrityMismatch:
		return "IntegrityMismatch"
	case MissingMetadata:
		return "MissingMetadata"
	case EntryNotFound:
		return "EntryNotFound"
	case PlanUnsatisfiable:
		return "PlanUnsatisfiable"
	case PartialFailureBatch:
		return "PartialFailureBatch"
	default:
		return "Unknown"
	}
}

// Error is the typed error value carried through the core; Kind lets callers
// branch on category with errors.As without string-matching messages.
type Error struct {
	Kind    Kind
	Ref     string // dist_str of the package ref involved, when applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/As see through to the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no ref context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an existing error with ref context.
func Wrap(kind Kind, ref string, cause error, message string) *Error {
	return &Error{Kind: kind, Ref: ref, Message: message, Cause: errors.WithMessage(cause, message)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

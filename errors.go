// Package heimdall is the Core API: it extracts metadata from a linked
// binary, builds a component/dependency graph, serializes it as an SPDX or
// CycloneDX document, and optionally signs the result. See handle.go for
// the entry points.
package heimdall

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// isErr is errors.Is under a short name, used throughout statusForError.
func isErr(err, target error) bool { return errors.Is(err, target) }

// Sentinel error kinds, checkable with errors.Is. Each strategy and
// serializer wraps one of these with xerrors.Errorf("...: %w", err) so
// callers keep both the stable kind and the call-site detail.
var (
	ErrIoError           = xerrors.New("io error")
	ErrUnsupportedFormat = xerrors.New("unsupported object format")
	ErrTruncated         = xerrors.New("truncated or malformed header")
	ErrDanglingReference = xerrors.New("dangling dependency reference")
	ErrCancelled         = xerrors.New("operation cancelled")
	ErrTooLarge          = xerrors.New("file exceeds configured size cap")
	ErrKeyError          = xerrors.New("signing key error")
	ErrInvalidHash       = xerrors.New("invalid or unsupported hash algorithm")
)

// DecodeError describes a fatal, file-level failure of an object-format
// decoder or archive walker. No function in this module returns one:
// decoder failures surface as the sentinel kinds above.
type DecodeError struct {
	Path   string
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExtractError describes an A- or B-level failure that makes a whole
// Component unrecoverable. No function in this module returns one:
// orchestrator failures surface as the sentinel kinds above.
type ExtractError struct {
	Path     string
	Strategy string
	Err      error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Strategy, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// SignError describes a signing failure. No function in this module
// returns one: signing failures surface as the sentinel kinds above, and
// signing never produces an unsigned fallback document once requested.
type SignError struct {
	KeyPath   string
	Algorithm string
	Err       error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign with %s (%s): %v", e.KeyPath, e.Algorithm, e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

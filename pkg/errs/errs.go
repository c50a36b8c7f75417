// Package errs defines the domain error kinds shared by the store adapter,
// the managers and the HTTP layer. Callers classify errors with errors.Is
// and wrap context with fmt.Errorf("...: %w", err).
package errs

import "errors"

var (
	// ErrUnauthenticated means no valid identity was attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the identity is authenticated but lacks the
	// required role (not the creator, not a member).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the referenced channel or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means a required field is empty or a combination
	// of fields is invalid.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict means a uniqueness constraint was violated, e.g. a
	// duplicate membership row.
	ErrConflict = errors.New("conflict")
	// ErrNotMember means a membership row expected to exist is absent.
	ErrNotMember = errors.New("not a member")
	// ErrUnknownReference means a referenced identity does not exist.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrStoreUnavailable means the backing store is not reachable/open.
	ErrStoreUnavailable = errors.New("store unavailable")
)

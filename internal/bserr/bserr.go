// Package bserr defines the error taxonomy shared by the store, scan,
// estimator and HTTP packages.
package bserr

import "errors"

// Code identifies a member of the error taxonomy. Codes are compared with
// errors.Is, never by string value.
type Code struct {
	name string
}

func (c Code) Error() string { return c.name }

func newCode(name string) Code { return Code{name: name} }

// Parse errors (HTTP path grammar, §4.7).
var (
	ErrEmptyPath         = newCode("empty_path")
	ErrInvalidNumber     = newCode("invalid_number")
	ErrInvalidHash       = newCode("invalid_hash")
	ErrMissingVersion    = newCode("missing_version")
	ErrMissingTarget     = newCode("missing_target")
	ErrInvalidTarget     = newCode("invalid_target")
	ErrMissingHash       = newCode("missing_hash")
	ErrMissingHeight     = newCode("missing_height")
	ErrMissingPosition   = newCode("missing_position")
	ErrMissingIDType     = newCode("missing_id_type")
	ErrInvalidIDType     = newCode("invalid_id_type")
	ErrMissingTypeID     = newCode("missing_type_id")
	ErrMissingComponent  = newCode("missing_component")
	ErrInvalidComponent  = newCode("invalid_component")
	ErrInvalidSubcomp    = newCode("invalid_subcomponent")
	ErrExtraSegment      = newCode("extra_segment")
	ErrNotAcceptable     = newCode("not_acceptable")
)

// Service errors.
var (
	ErrNotFound         = newCode("not_found")
	ErrNotImplemented   = newCode("not_implemented")
	ErrInvalidArgument  = newCode("invalid_argument")
	ErrArgumentOverflow = newCode("argument_overflow")
	ErrTargetOverflow   = newCode("target_overflow")
	ErrServerError      = newCode("server_error")
)

// Store errors.
var (
	ErrIntegrity  = newCode("integrity")
	ErrFlushLock  = newCode("flush_lock")
	ErrDiskFull   = newCode("disk_full")
)

// Lifecycle errors.
var (
	ErrStoreUninitialized = newCode("store_uninitialized")
	ErrServiceStopped     = newCode("service_stopped")
	ErrSuspendedService   = newCode("suspended_service")
)

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	return errors.Is(err, code)
}

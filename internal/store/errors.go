package store

import (
	"fmt"
	"io"

	"github.com/tmoreau/marginalia/internal/logging"
)

// Kind classifies a store-level failure so callers can branch without
// string-matching error messages.
type Kind string

const (
	KindTableMissing     Kind = "table_missing"
	KindSchemaMismatch   Kind = "schema_mismatch"
	KindIO               Kind = "io"
	KindIndexUnavailable Kind = "index_unavailable"
	KindOffsetOverflow   Kind = "offset_overflow"
	KindNotFound         Kind = "not_found"
	KindInternal         Kind = "internal"
)

// Error is the structured error every store adapter operation returns on
// failure. Kind lets callers choose a fallback path instead of matching on
// error text.
type Error struct {
	Kind  Kind
	Table string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s %s (%s): %v", e.Op, e.Table, e.Kind, e.Err)
	}
	return fmt.Sprintf("store: %s %s (%s)", e.Op, e.Table, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op, table string, kind Kind, err error) *Error {
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if e, ok := err.(*Error); ok {
		se = e
	} else {
		return false
	}
	return se.Kind == kind
}

// closeWithLog closes a resource and logs any error instead of swallowing it.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Err(err).Str("type", resourceType).Msg("failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly discards any error; used on
// error paths where the close failure is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

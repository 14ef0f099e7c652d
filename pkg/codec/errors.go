package codec

import "errors"

// Caller-correctable failures. Every setter returns one of these so the
// caller can fix the value and retry; the row buffer stays usable.
var (
	ErrUnknownField     = errors.New("unknown field")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrOutOfRange       = errors.New("value out of range")
	ErrNotNullable      = errors.New("field is not nullable")
	ErrFieldUnset       = errors.New("field is not set and has no default")
	ErrAlreadyFinished  = errors.New("row is already finished")
	ErrNotFinished      = errors.New("row is not finished")
)

// Corruption-class failures. These indicate schema/data drift or a broken
// default expression rather than a bad caller value; rows that hit them must
// be discarded.
var (
	ErrBadSchema  = errors.New("invalid schema")
	ErrCorruptRow = errors.New("corrupt row data")
)

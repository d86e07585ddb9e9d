package blob

import "errors"

// ErrKeyNotFound is returned by Get for an absent key.
var ErrKeyNotFound = errors.New("blob: key not found")

// Op constants name store operations for error context.
const (
	OpExists = "EXISTS"
	OpGet    = "GET"
	OpPut    = "PUT"
	OpDelete = "DELETE"
	OpList   = "LIST"
)

// Error wraps an underlying store error with the operation name.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

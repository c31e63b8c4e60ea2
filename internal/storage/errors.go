package storage

import (
	"errors"

	"expensetracker/internal/core"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Error is a storage fault: the medium was unavailable or rejected the
// operation. errors.Is(err, core.ErrStorage) holds for every Error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == core.ErrStorage
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

package tgredis

import (
	"errors"
	"fmt"
)

// DuplicateKeyCode is the error code of a unique index violation
const DuplicateKeyCode = 11000

// DuplicateKeyError is returned when a write violates a unique index
type DuplicateKeyError struct {
	Collection string
	Index      string
	Key        map[string]any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("E%d duplicate key error collection: %s index: %s dup key: %v",
		DuplicateKeyCode, e.Collection, e.Index, e.Key)
}

// Code returns DuplicateKeyCode
func (e *DuplicateKeyError) Code() int { return DuplicateKeyCode }

// IsDuplicateKey checks if err is, or wraps, a DuplicateKeyError
func IsDuplicateKey(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

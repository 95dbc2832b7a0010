package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyHashKey    = errors.New("map: hash key must not be empty")
	ErrSwapConflict    = errors.New("map: hash modified concurrently, retries exhausted")
	ErrUnknownSwapMode = errors.New("map: unknown swap mode")
)

const decodeErrorPrefix = "map: cannot decode stored value: "

// ErrDecode is returned when a value held by the remote hash is not a base-10
// integer. Field is empty when the value came from a listing that does not
// carry field names (HVALS).
type ErrDecode struct {
	HashKey string
	Field   string
	Raw     string
	Err     error
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("%s%s/%s=%q", decodeErrorPrefix, e.HashKey, e.Field, e.Raw)
}

func (e *ErrDecode) Unwrap() error {
	return e.Err
}

func (e *ErrDecode) From(err error) bool {
	if err == nil {
		return false
	}

	var decodeErr *ErrDecode
	if errors.As(err, &decodeErr) {
		*e = *decodeErr
		return true
	}

	return strings.Contains(err.Error(), decodeErrorPrefix)
}

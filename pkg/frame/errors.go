package frame

import (
	"errors"
	"fmt"
)

// ErrEncodingOverflow indicates a frame doesn't fit its destination buffer.
// It's a programming bound violation, frames are never truncated.
var ErrEncodingOverflow = errors.New("encoding overflow")

// OverflowError reports the sizes involved in an overflow.
type OverflowError struct {
	Kind      string
	Need      int
	Available int
}

// Error implements error.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s frame needs %d bytes, %d available: %v",
		e.Kind, e.Need, e.Available, ErrEncodingOverflow)
}

// Is makes errors.Is(err, ErrEncodingOverflow) match.
func (e *OverflowError) Is(target error) bool {
	return target == ErrEncodingOverflow
}

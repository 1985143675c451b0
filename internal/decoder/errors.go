package decoder

import "fmt"

// DecodeError reports a source that could not be opened or decoded. It is
// a per-image failure: the batch skips the image and carries on.
type DecodeError struct {
	Location string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Location, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

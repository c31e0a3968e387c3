package signature

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode indicates the raw input is empty or could not be decoded.
	ErrImageDecode = errors.New("signature: image could not be decoded")
	// ErrLowQuality indicates the query canvas carries too little ink to compare.
	ErrLowQuality = errors.New("signature: quality too low")
	// ErrInvalidCanvas indicates a canvas that is nil or not of the configured size.
	ErrInvalidCanvas = errors.New("signature: invalid canonical canvas")
)

// EntryError reports the gallery entry whose comparison failed a ranking run.
type EntryError struct {
	Identity string
	Index    int
	Err      error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("gallery entry %d (%s): %v", e.Index, e.Identity, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EntryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

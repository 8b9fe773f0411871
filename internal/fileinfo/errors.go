package fileinfo

import (
	"errors"
	"fmt"
)

// ErrUnreadable signals that the source path could not be read.
var ErrUnreadable = errors.New("source unreadable")

// ProbeError reports a failure to read the probed path.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() []error {
	return []error{ErrUnreadable, e.Err}
}

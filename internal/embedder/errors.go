package embedder

import (
	"errors"
	"fmt"
)

// The two failure kinds of an embed run. Both abort the build step.
var (
	ErrSourceUnreadable      = errors.New("source unreadable")
	ErrDestinationUnwritable = errors.New("destination unwritable")
)

// SourceUnreadableError reports a page that could not be read or embedded:
// missing file, permission denied, invalid UTF-8 or a delimiter collision in
// strict mode.
type SourceUnreadableError struct {
	Path string
	Err  error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("source unreadable: %s: %v", e.Path, e.Err)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Err }

// Is matches ErrSourceUnreadable.
func (e *SourceUnreadableError) Is(target error) bool {
	return target == ErrSourceUnreadable
}

// DestinationUnwritableError reports a header that could not be written:
// missing directory, permission denied, disk full.
type DestinationUnwritableError struct {
	Path string
	Err  error
}

func (e *DestinationUnwritableError) Error() string {
	return fmt.Sprintf("destination unwritable: %s: %v", e.Path, e.Err)
}

func (e *DestinationUnwritableError) Unwrap() error { return e.Err }

// Is matches ErrDestinationUnwritable.
func (e *DestinationUnwritableError) Is(target error) bool {
	return target == ErrDestinationUnwritable
}

package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBinaryNotFound  = errors.New("binary not found")
	ErrSpawnFailed     = errors.New("spawn failed")
	ErrProcessFailed   = errors.New("process failed")
)

// ProcessError is returned when the binary exits with a non-zero status.
// Code is -1 when the process was terminated by a signal.
type ProcessError struct {
	Kind Kind
	Code int
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("qrimzn %s exited with code %d", e.Kind, e.Code)
}

func (e *ProcessError) Unwrap() error { return ErrProcessFailed }

// SpawnError is returned when the operating system refuses to start the binary.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() []error { return []error{ErrSpawnFailed, e.Err} }

// ErrorKind maps a bridge error to a stable name for history records.
// It returns "" for nil and "error" for anything outside the taxonomy.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrBinaryNotFound):
		return "binary_not_found"
	case errors.Is(err, ErrSpawnFailed):
		return "spawn_failed"
	case errors.Is(err, ErrProcessFailed):
		return "process_failed"
	default:
		return "error"
	}
}

// Package cartelerr defines the closed error taxonomy used across the
// daemon and client. Callers distinguish error kinds with errors.As, not
// string matching.
package cartelerr

import "fmt"

// NotFound is returned when an operation references a module name that
// has never been deployed.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string { return fmt.Sprintf("module not found: %s", e.Name) }

// SubsetNotFound is returned when a deploy selection references module
// names that are not present in the supplied module set.
type SubsetNotFound struct{}

func (e *SubsetNotFound) Error() string { return "selection is not a subset of the given modules" }

// TaskFailed is returned when a synchronously-run Task module exits
// non-zero.
type TaskFailed struct {
	TaskName string
	Code     int
	LogFile  string
}

func (e *TaskFailed) Error() string {
	return fmt.Sprintf("task %s failed with exit code %d (log: %s)", e.TaskName, e.Code, e.LogFile)
}

// SpawnFailure wraps an error encountered starting a module's process.
type SpawnFailure struct {
	Name string
	Err  error
}

func (e *SpawnFailure) Error() string {
	return fmt.Sprintf("Failed to run service '%s': %v", e.Name, e.Err)
}

func (e *SpawnFailure) Unwrap() error { return e.Err }

// ReadError wraps an error reading a manifest or log file.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// IOError wraps a generic I/O failure (process group signaling, file
// creation, etc).
type IOError struct {
	Context string
	Err     error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Context, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// CycleDetected is returned by the dependency resolver when the module
// graph contains a cycle.
type CycleDetected struct{}

func (e *CycleDetected) Error() string { return "The graph contains cycles" }

// ValidationError covers manifest-level validation failures: duplicate
// names, a Check used as a dependency, a missing dependency reference.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

package api

import (
	"fmt"
	"time"
)

// DispatchError indicates the scheduler did not start exactly one task.
// Err is set when the RunTask call itself failed.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task dispatch error: %s: %v", e.Reason, e.Err)
	}
	return "task dispatch error: " + e.Reason
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// CompletionTimeoutError indicates the wait budget ran out before the task
// stopped. The task may still be running remotely.
type CompletionTimeoutError struct {
	TaskID     string
	Iterations int
	Interval   time.Duration
}

func (e *CompletionTimeoutError) Error() string {
	return fmt.Sprintf("task completion timeout: %s not stopped after %d checks every %s",
		e.TaskID, e.Iterations, e.Interval)
}

// Budget returns the worst-case wall-clock time that was waited.
func (e *CompletionTimeoutError) Budget() time.Duration {
	return time.Duration(e.Iterations) * e.Interval
}

// InvalidParameterError indicates an invalid argument or configuration value.
type InvalidParameterError struct {
	Message string
}

func (e *InvalidParameterError) Error() string {
	return e.Message
}

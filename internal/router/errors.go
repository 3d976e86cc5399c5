package router

import (
	"strings"

	"github.com/brandcraft/brandcraft/internal/task"
)

// Error is the router's only failure shape. It carries a human-readable
// message and per-provider details, never a stack trace or credential
// material. Handlers map it to {error:true, message, details}.
type Error struct {
	Task    task.Task
	Message string
	Details string
}

func (e *Error) Error() string {
	return e.Message
}

func newExhaustedError(t task.Task, failures []string) *Error {
	return &Error{
		Task:    t,
		Message: "no providers available for task",
		Details: strings.Join(failures, "; "),
	}
}

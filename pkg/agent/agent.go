// Package agent defines the contract shared by every BerinIA agent: a single
// Run entry point, a JSON config document on disk, a prompt template with
// placeholder substitution, and status reporting.
//
// Agents never call each other directly. All cross-agent calls go through a
// Dispatcher (implemented by the overseer) so that logging, timeouts and error
// translation apply uniformly.
package agent

import (
	"context"
	"fmt"
)

// Status is the instantaneous state of an agent instance.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// Agent is the single entry point every BerinIA agent exposes.
// Input and output are structured maps; the output always carries a "status"
// key with value "success" or "error".
type Agent interface {
	Name() string
	Run(ctx context.Context, input map[string]any) map[string]any
}

// StatusReporter is implemented by agents whose status is tracked by the
// overseer. BaseAgent satisfies it.
type StatusReporter interface {
	Status() Status
	SetStatus(Status)
}

// Dispatcher routes a call to a named agent. The overseer is the only
// production implementation; tests substitute their own.
type Dispatcher interface {
	Execute(ctx context.Context, target string, input map[string]any) map[string]any
}

// Success builds a success result carrying the given fields.
func Success(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = "success"
	return out
}

// Errorf builds an error result with a formatted message.
func Errorf(format string, args ...any) map[string]any {
	return map[string]any{
		"status":  "error",
		"message": fmt.Sprintf(format, args...),
	}
}

// IsError reports whether a result carries an error status.
func IsError(result map[string]any) bool {
	status, _ := result["status"].(string)
	return status != "success"
}

// Message extracts the message field from a result, if any.
func Message(result map[string]any) string {
	msg, _ := result["message"].(string)
	return msg
}

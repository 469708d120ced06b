package api

// TaskStatus is the lastStatus value reported by the scheduler for a task.
// The set of values is open; only StatusStopped is terminal.
type TaskStatus string

// Task lifecycle values reported by ECS.
const (
	StatusProvisioning   TaskStatus = "PROVISIONING"
	StatusPending        TaskStatus = "PENDING"
	StatusActivating     TaskStatus = "ACTIVATING"
	StatusRunning        TaskStatus = "RUNNING"
	StatusDeactivating   TaskStatus = "DEACTIVATING"
	StatusStopping       TaskStatus = "STOPPING"
	StatusDeprovisioning TaskStatus = "DEPROVISIONING"
	StatusStopped        TaskStatus = "STOPPED"
)

// IsTerminal reports whether the task has finished.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusStopped
}

// LogResult is the outcome of inspecting a task's log lines.
type LogResult struct {
	HasErrors bool     `json:"hasErrors"`
	Messages  []string `json:"messages"`
}

package cwlogs

import (
	"fmt"
	"os"
)

// Config locates a task's log stream: LogStreamPrefix + task ID in
// LogGroupName. With the awslogs driver the prefix is usually
// "<awslogs-stream-prefix>/<container-name>/".
type Config struct {
	LogGroupName    string
	LogStreamPrefix string
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() Config {
	return Config{
		LogGroupName:    os.Getenv("ECS_ONESHOT_LOG_GROUP"),
		LogStreamPrefix: os.Getenv("ECS_ONESHOT_LOG_STREAM_PREFIX"),
	}
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.LogGroupName == "" {
		return fmt.Errorf("log group name is required")
	}
	return nil
}

// StreamName returns the log stream holding taskID's output.
func (c Config) StreamName(taskID string) string {
	return c.LogStreamPrefix + taskID
}

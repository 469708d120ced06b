package ecs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config describes where and how the task runs. It is copied into a
// TaskManager and never mutated afterwards.
type Config struct {
	Cluster        string
	TaskDefinition string // family, family:revision or ARN
	Subnets        []string
	SecurityGroups []string
	Wait           WaitPolicy
}

// WaitPolicy bounds how long DispatchAndWait waits: at most
// CheckInterval × MaxIterations.
type WaitPolicy struct {
	CheckInterval time.Duration
	MaxIterations int
}

// Default wait budget: 6s × 20 = 2 minutes.
const (
	DefaultCheckInterval = 6 * time.Second
	DefaultMaxIterations = 20
)

// DefaultWaitPolicy returns the default wait budget.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{CheckInterval: DefaultCheckInterval, MaxIterations: DefaultMaxIterations}
}

func (p WaitPolicy) withDefaults() WaitPolicy {
	if p.CheckInterval == 0 {
		p.CheckInterval = DefaultCheckInterval
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	return p
}

// Budget is the worst-case wall-clock wait.
func (p WaitPolicy) Budget() time.Duration {
	p = p.withDefaults()
	return time.Duration(p.MaxIterations) * p.CheckInterval
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	c := Config{
		Cluster:        os.Getenv("ECS_ONESHOT_CLUSTER"),
		TaskDefinition: os.Getenv("ECS_ONESHOT_TASK_DEFINITION"),
		Subnets:        splitCSV(os.Getenv("ECS_ONESHOT_SUBNETS")),
		SecurityGroups: splitCSV(os.Getenv("ECS_ONESHOT_SECURITY_GROUPS")),
		Wait:           DefaultWaitPolicy(),
	}
	if v := os.Getenv("ECS_ONESHOT_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("ECS_ONESHOT_CHECK_INTERVAL: %w", err)
		}
		c.Wait.CheckInterval = d
	}
	if v := os.Getenv("ECS_ONESHOT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("ECS_ONESHOT_MAX_ITERATIONS: %w", err)
		}
		c.Wait.MaxIterations = n
	}
	return c, nil
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.Cluster == "" {
		return fmt.Errorf("ECS cluster name is required")
	}
	if c.TaskDefinition == "" {
		return fmt.Errorf("task definition is required")
	}
	if len(c.Subnets) == 0 {
		return fmt.Errorf("at least one subnet is required")
	}
	if c.Wait.CheckInterval < 0 {
		return fmt.Errorf("check interval must be positive, got %s", c.Wait.CheckInterval)
	}
	if c.Wait.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.Wait.MaxIterations)
	}
	return nil
}

func (c Config) clone() Config {
	c.Subnets = append([]string(nil), c.Subnets...)
	c.SecurityGroups = append([]string(nil), c.SecurityGroups...)
	return c
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

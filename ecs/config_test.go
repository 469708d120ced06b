package ecs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ECS_ONESHOT_CLUSTER", "jobs")
	t.Setenv("ECS_ONESHOT_TASK_DEFINITION", "worker:3")
	t.Setenv("ECS_ONESHOT_SUBNETS", "subnet-a, subnet-b,,")
	t.Setenv("ECS_ONESHOT_SECURITY_GROUPS", "sg-1")
	t.Setenv("ECS_ONESHOT_CHECK_INTERVAL", "2s")
	t.Setenv("ECS_ONESHOT_MAX_ITERATIONS", "5")

	c, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "jobs", c.Cluster)
	assert.Equal(t, "worker:3", c.TaskDefinition)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, c.Subnets)
	assert.Equal(t, []string{"sg-1"}, c.SecurityGroups)
	assert.Equal(t, WaitPolicy{CheckInterval: 2 * time.Second, MaxIterations: 5}, c.Wait)
	assert.NoError(t, c.Validate())
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("ECS_ONESHOT_CHECK_INTERVAL", "")
	t.Setenv("ECS_ONESHOT_MAX_ITERATIONS", "")

	c, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultWaitPolicy(), c.Wait)
	assert.Equal(t, 2*time.Minute, c.Wait.Budget())
}

func TestConfigFromEnvBadValues(t *testing.T) {
	t.Setenv("ECS_ONESHOT_CHECK_INTERVAL", "soon")
	_, err := ConfigFromEnv()
	assert.ErrorContains(t, err, "ECS_ONESHOT_CHECK_INTERVAL")

	t.Setenv("ECS_ONESHOT_CHECK_INTERVAL", "")
	t.Setenv("ECS_ONESHOT_MAX_ITERATIONS", "many")
	_, err = ConfigFromEnv()
	assert.ErrorContains(t, err, "ECS_ONESHOT_MAX_ITERATIONS")
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Cluster: "c", TaskDefinition: "td", Subnets: []string{"s"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"cluster", func(c *Config) { c.Cluster = "" }, "cluster"},
		{"task definition", func(c *Config) { c.TaskDefinition = "" }, "task definition"},
		{"subnets", func(c *Config) { c.Subnets = nil }, "subnet"},
		{"interval", func(c *Config) { c.Wait.CheckInterval = -time.Second }, "check interval"},
		{"iterations", func(c *Config) { c.Wait.MaxIterations = -1 }, "max iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid.clone()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.msg)
		})
	}
}

func TestConfigClone(t *testing.T) {
	orig := Config{Subnets: []string{"a"}, SecurityGroups: []string{"sg"}}
	c := orig.clone()
	c.Subnets[0] = "b"
	c.SecurityGroups[0] = "sg2"
	assert.Equal(t, "a", orig.Subnets[0])
	assert.Equal(t, "sg", orig.SecurityGroups[0])
}

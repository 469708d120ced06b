package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the --config file. Keys left out keep the value from the
// environment; flags override both.
type fileConfig struct {
	Region          string   `yaml:"region"`
	EndpointURL     string   `yaml:"endpointUrl"`
	Cluster         string   `yaml:"cluster"`
	TaskDefinition  string   `yaml:"taskDefinition"`
	Subnets         []string `yaml:"subnets"`
	SecurityGroups  []string `yaml:"securityGroups"`
	CheckInterval   string   `yaml:"checkInterval"`
	MaxIterations   int      `yaml:"maxIterations"`
	LogGroup        string   `yaml:"logGroup"`
	LogStreamPrefix string   `yaml:"logStreamPrefix"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func (a *app) applyFile(fc fileConfig) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.aws.Region, fc.Region)
	set(&a.aws.EndpointURL, fc.EndpointURL)
	set(&a.ecs.Cluster, fc.Cluster)
	set(&a.ecs.TaskDefinition, fc.TaskDefinition)
	set(&a.logs.LogGroupName, fc.LogGroup)
	set(&a.logs.LogStreamPrefix, fc.LogStreamPrefix)
	if len(fc.Subnets) > 0 {
		a.ecs.Subnets = fc.Subnets
	}
	if len(fc.SecurityGroups) > 0 {
		a.ecs.SecurityGroups = fc.SecurityGroups
	}
	if fc.CheckInterval != "" {
		d, err := time.ParseDuration(fc.CheckInterval)
		if err != nil {
			return fmt.Errorf("checkInterval: %w", err)
		}
		a.ecs.Wait.CheckInterval = d
	}
	if fc.MaxIterations != 0 {
		a.ecs.Wait.MaxIterations = fc.MaxIterations
	}
	return nil
}

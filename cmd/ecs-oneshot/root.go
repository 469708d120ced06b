package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sockerless/ecs-oneshot/awscommon"
	"github.com/sockerless/ecs-oneshot/core"
	"github.com/sockerless/ecs-oneshot/cwlogs"
	"github.com/sockerless/ecs-oneshot/ecs"
)

// errLogErrors is returned when the task ran but its output contains an
// error line. main turns it into exit status 1 like any other error.
var errLogErrors = errors.New("task logs contain errors")

// app holds the flag values and the clients built from them.
type app struct {
	logLevel    string
	logFormat   string
	metricsFile string
	configFile  string

	aws  awscommon.Config
	ecs  ecs.Config
	logs cwlogs.Config

	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *core.Metrics
	shutdown func(context.Context) error

	ecsClient  ecs.API
	logsClient cwlogs.API
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ecs-oneshot",
		Short: "Run a single ECS task and inspect its logs",
		Long: `ecs-oneshot dispatches one Fargate task, waits for it to stop and reads
its CloudWatch log stream. Settings come from ECS_ONESHOT_* and AWS_*
environment variables, optionally overlaid by a YAML --config file; flags
override both.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&a.logFormat, "log-format", "console", "Log format (console, json)")
	f.StringVar(&a.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	f.StringVarP(&a.configFile, "config", "c", "", "YAML settings file; overrides the environment, flags override it")

	f.String("region", "", "AWS region (or AWS_REGION)")
	f.String("endpoint-url", "", "Override the AWS endpoint, e.g. a local simulator (or ECS_ONESHOT_ENDPOINT_URL)")
	f.String("cluster", "", "ECS cluster name or ARN (or ECS_ONESHOT_CLUSTER)")
	f.String("task-definition", "", "Task definition family, family:revision or ARN (or ECS_ONESHOT_TASK_DEFINITION)")
	f.StringSlice("subnets", nil, "Subnets for the awsvpc network (or ECS_ONESHOT_SUBNETS)")
	f.StringSlice("security-groups", nil, "Security groups for the awsvpc network (or ECS_ONESHOT_SECURITY_GROUPS)")
	f.Duration("check-interval", 0, "Time between status checks (or ECS_ONESHOT_CHECK_INTERVAL, default 6s)")
	f.Int("max-iterations", 0, "Number of status checks before giving up (or ECS_ONESHOT_MAX_ITERATIONS, default 20)")
	f.String("log-group", "", "CloudWatch log group of the task (or ECS_ONESHOT_LOG_GROUP)")
	f.String("log-stream-prefix", "", "Log stream prefix; the stream is prefix + task ID (or ECS_ONESHOT_LOG_STREAM_PREFIX)")

	root.AddCommand(
		newRunCmd(a),
		newStatusCmd(a),
		newLogsCmd(a),
	)
	return root
}

// setup layers environment, config file and flags, then builds the
// clients every subcommand shares.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger = core.NewLoggerWithWriter(cmd.ErrOrStderr(), a.logLevel, a.logFormat, "ecs-oneshot")

	var err error
	a.aws = awscommon.ConfigFromEnv()
	if a.ecs, err = ecs.ConfigFromEnv(); err != nil {
		return err
	}
	a.logs = cwlogs.ConfigFromEnv()
	if a.configFile != "" {
		fc, err := loadFileConfig(a.configFile)
		if err != nil {
			return err
		}
		if err := a.applyFile(fc); err != nil {
			return err
		}
	}
	if err := a.applyFlags(cmd); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = core.NewMetrics(a.registry)

	a.shutdown, err = core.InitTracer("ecs-oneshot")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	cfg, err := awscommon.LoadConfig(cmd.Context(), a.aws)
	if err != nil {
		return errors.Join(fmt.Errorf("load AWS config: %w", err), a.finish())
	}
	a.ecsClient = awsecs.NewFromConfig(cfg)
	a.logsClient = cloudwatchlogs.NewFromConfig(cfg)
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("region", &a.aws.Region)
	str("endpoint-url", &a.aws.EndpointURL)
	str("cluster", &a.ecs.Cluster)
	str("task-definition", &a.ecs.TaskDefinition)
	str("log-group", &a.logs.LogGroupName)
	str("log-stream-prefix", &a.logs.LogStreamPrefix)

	var err error
	if f.Changed("subnets") {
		if a.ecs.Subnets, err = f.GetStringSlice("subnets"); err != nil {
			return err
		}
	}
	if f.Changed("security-groups") {
		if a.ecs.SecurityGroups, err = f.GetStringSlice("security-groups"); err != nil {
			return err
		}
	}
	if f.Changed("check-interval") {
		if a.ecs.Wait.CheckInterval, err = f.GetDuration("check-interval"); err != nil {
			return err
		}
	}
	if f.Changed("max-iterations") {
		if a.ecs.Wait.MaxIterations, err = f.GetInt("max-iterations"); err != nil {
			return err
		}
	}
	return nil
}

// runE wraps a command so traces and metrics are flushed whether or not it
// fails. PersistentPostRunE is skipped on error.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, a.finish())
	}
}

func (a *app) finish() error {
	var errs []error
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdown(ctx))
		cancel()
		a.shutdown = nil
	}
	if a.metricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
		a.metricsFile = ""
	}
	return errors.Join(errs...)
}

func (a *app) taskManager() *ecs.TaskManager {
	return ecs.NewTaskManager(a.ecs, a.ecsClient, a.logger, ecs.WithMetrics(a.metrics))
}

func (a *app) logReader() *cwlogs.Reader {
	return cwlogs.NewReader(a.logs, a.logsClient, a.logger, cwlogs.WithMetrics(a.metrics))
}

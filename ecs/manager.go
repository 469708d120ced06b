// Package ecs dispatches a single Fargate task and waits for it to stop.
package ecs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sockerless/ecs-oneshot/api"
	"github.com/sockerless/ecs-oneshot/awscommon"
	"github.com/sockerless/ecs-oneshot/core"
)

const tracerName = "github.com/sockerless/ecs-oneshot/ecs"

// API is the subset of the ECS client used by TaskManager.
type API interface {
	RunTask(ctx context.Context, params *awsecs.RunTaskInput, optFns ...func(*awsecs.Options)) (*awsecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, params *awsecs.DescribeTasksInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeTasksOutput, error)
}

// TaskManager runs one task at a time on the configured cluster.
type TaskManager struct {
	config  Config
	client  API
	logger  zerolog.Logger
	metrics *core.Metrics
	tracer  trace.Tracer
}

// Option configures a TaskManager.
type Option func(*TaskManager)

// WithMetrics records dispatch and wait outcomes on m.
func WithMetrics(m *core.Metrics) Option {
	return func(tm *TaskManager) { tm.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(tm *TaskManager) { tm.tracer = tp.Tracer(tracerName) }
}

// NewTaskManager creates a TaskManager. config is copied.
func NewTaskManager(config Config, client API, logger zerolog.Logger, opts ...Option) *TaskManager {
	m := &TaskManager{
		config: config.clone(),
		client: client,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *TaskManager) runTaskInput() *awsecs.RunTaskInput {
	return &awsecs.RunTaskInput{
		Cluster:        aws.String(m.config.Cluster),
		TaskDefinition: aws.String(m.config.TaskDefinition),
		Count:          aws.Int32(1),
		LaunchType:     ecstypes.LaunchTypeFargate,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
				SecurityGroups: m.config.SecurityGroups,
				Subnets:        m.config.Subnets,
			},
		},
		EnableECSManagedTags: true,
		PropagateTags:        ecstypes.PropagateTagsTaskDefinition,
	}
}

// Dispatch starts exactly one task and returns its ID. It fails with
// *api.DispatchError if RunTask errors, reports any failure, launches
// nothing, or returns an ARN that ParseTaskID cannot handle.
func (m *TaskManager) Dispatch(ctx context.Context) (string, error) {
	ctx, span := m.tracer.Start(ctx, "ecs.Dispatch", trace.WithAttributes(
		attribute.String("ecs.cluster", m.config.Cluster),
		attribute.String("ecs.task_definition", m.config.TaskDefinition),
	))
	defer span.End()

	out, err := m.client.RunTask(ctx, m.runTaskInput())
	if err != nil {
		m.logger.Error().Err(err).Str("code", awscommon.ErrorCode(err)).Msg("RunTask failed")
		return "", m.dispatchFailed(span, &api.DispatchError{Reason: "RunTask failed", Err: err})
	}
	if out == nil {
		out = &awsecs.RunTaskOutput{}
	}

	if len(out.Failures) > 0 {
		f := out.Failures[0]
		reason := aws.ToString(f.Reason)
		if detail := aws.ToString(f.Detail); detail != "" {
			reason += ": " + detail
		}
		m.logger.Error().
			Int("failures", len(out.Failures)).
			Str("arn", aws.ToString(f.Arn)).
			Str("reason", reason).
			Msg("RunTask reported failures")
		return "", m.dispatchFailed(span, &api.DispatchError{Reason: "scheduler reported failure: " + reason})
	}
	if len(out.Tasks) == 0 {
		return "", m.dispatchFailed(span, &api.DispatchError{Reason: "no tasks launched"})
	}

	taskARN := aws.ToString(out.Tasks[0].TaskArn)
	if taskARN == "" {
		return "", m.dispatchFailed(span, &api.DispatchError{Reason: "launched task has no ARN"})
	}
	taskID, ok := ParseTaskID(taskARN, m.config.Cluster)
	if !ok {
		return "", m.dispatchFailed(span, &api.DispatchError{
			Reason: fmt.Sprintf("cannot extract task ID from %q for cluster %q", taskARN, m.config.Cluster),
		})
	}

	span.SetAttributes(attribute.String("ecs.task_id", taskID))
	m.metrics.RecordDispatch("ok")
	m.logger.Info().Str("task", taskID).Str("arn", taskARN).Msg("dispatched task")
	return taskID, nil
}

func (m *TaskManager) dispatchFailed(span trace.Span, err *api.DispatchError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Reason)
	m.metrics.RecordDispatch("failed")
	return err
}

// PollStatus returns the task's lastStatus. known is false when the
// status could not be determined: the call failed, the response carried a
// failure entry, or no task came back. It never returns an error.
func (m *TaskManager) PollStatus(ctx context.Context, taskID string) (status api.TaskStatus, known bool) {
	out, err := m.client.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
		Cluster: aws.String(m.config.Cluster),
		Tasks:   []string{taskID},
	})
	switch {
	case err != nil:
		m.logger.Debug().Err(err).Str("code", awscommon.ErrorCode(err)).Str("task", taskID).Msg("DescribeTasks failed")
	case out == nil || len(out.Failures) > 0:
		var reason string
		if out != nil {
			reason = aws.ToString(out.Failures[0].Reason)
		}
		m.logger.Debug().Str("task", taskID).Str("reason", reason).Msg("DescribeTasks reported failure")
	case len(out.Tasks) == 0:
		m.logger.Debug().Str("task", taskID).Msg("DescribeTasks returned no task")
	default:
		status = api.TaskStatus(aws.ToString(out.Tasks[0].LastStatus))
		if status.IsTerminal() {
			m.metrics.RecordStatusPoll("stopped")
		} else {
			m.metrics.RecordStatusPoll("pending")
		}
		return status, true
	}
	m.metrics.RecordStatusPoll("unknown")
	return "", false
}

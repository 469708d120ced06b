// Package cwlogs reads a finished task's CloudWatch log stream and flags
// output that looks like an error.
package cwlogs

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sockerless/ecs-oneshot/api"
	"github.com/sockerless/ecs-oneshot/awscommon"
	"github.com/sockerless/ecs-oneshot/core"
)

const tracerName = "github.com/sockerless/ecs-oneshot/cwlogs"

// API is the subset of the CloudWatch Logs client used by Reader.
type API interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// Reader fetches and classifies task logs. It never returns errors: a
// failed fetch reads as an empty log.
type Reader struct {
	config  Config
	client  API
	logger  zerolog.Logger
	metrics *core.Metrics
	tracer  trace.Tracer
}

// Option configures a Reader.
type Option func(*Reader)

// WithMetrics records fetch outcomes on m.
func WithMetrics(m *core.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Reader) { r.tracer = tp.Tracer(tracerName) }
}

// NewReader creates a Reader.
func NewReader(config Config, client API, logger zerolog.Logger, opts ...Option) *Reader {
	r := &Reader{
		config: config,
		client: client,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FetchLogs returns the messages of the first page of taskID's log stream,
// oldest first. Events without a message are skipped. Any failure yields an
// empty, non-nil slice.
func (r *Reader) FetchLogs(ctx context.Context, taskID string) []string {
	stream := r.config.StreamName(taskID)
	out, err := r.client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(r.config.LogGroupName),
		LogStreamName: aws.String(stream),
		StartFromHead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Debug().Err(err).
			Str("code", awscommon.ErrorCode(err)).
			Str("group", r.config.LogGroupName).
			Str("stream", stream).
			Msg("GetLogEvents failed")
		r.metrics.RecordLogFetch("failed", 0)
		return []string{}
	}
	if out == nil || out.Events == nil {
		r.logger.Debug().Str("stream", stream).Msg("GetLogEvents returned no events")
		r.metrics.RecordLogFetch("empty", 0)
		return []string{}
	}

	lines := make([]string, 0, len(out.Events))
	for _, event := range out.Events {
		if msg := aws.ToString(event.Message); msg != "" {
			lines = append(lines, msg)
		}
	}
	r.metrics.RecordLogFetch("ok", len(lines))
	return lines
}

// Parse fetches taskID's log lines and reports whether any looks like an
// error.
func (r *Reader) Parse(ctx context.Context, taskID string) api.LogResult {
	ctx, span := r.tracer.Start(ctx, "cwlogs.Parse", trace.WithAttributes(
		attribute.String("ecs.task_id", taskID),
		attribute.String("cwlogs.group", r.config.LogGroupName),
	))
	defer span.End()

	messages := r.FetchLogs(ctx, taskID)
	result := api.LogResult{HasErrors: HasErrors(messages), Messages: messages}
	span.SetAttributes(
		attribute.Int("cwlogs.lines", len(messages)),
		attribute.Bool("cwlogs.has_errors", result.HasErrors),
	)
	r.logger.Debug().Str("task", taskID).Int("lines", len(messages)).Bool("hasErrors", result.HasErrors).Msg("parsed task logs")
	return result
}

// HasErrors reports whether any message contains "err" in any case. The
// match is a plain substring, so "Berry" and "terrible" count.
func HasErrors(messages []string) bool {
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m), "err") {
			return true
		}
	}
	return false
}

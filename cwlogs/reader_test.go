package cwlogs_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sockerless/ecs-oneshot/api"
	"github.com/sockerless/ecs-oneshot/awscommon"
	"github.com/sockerless/ecs-oneshot/core"
	"github.com/sockerless/ecs-oneshot/cwlogs"
	"github.com/sockerless/ecs-oneshot/simulator"
)

var testConfig = cwlogs.Config{
	LogGroupName:    "/ecs/worker",
	LogStreamPrefix: "ecs/main/",
}

func newSimClient(t *testing.T) (*simulator.Simulator, *cloudwatchlogs.Client) {
	t.Helper()
	sim := simulator.New()
	srv := httptest.NewServer(sim)
	t.Cleanup(srv.Close)

	cfg, err := awscommon.LoadConfig(context.Background(), awscommon.Config{Region: "us-east-1", EndpointURL: srv.URL})
	require.NoError(t, err)
	return sim, cloudwatchlogs.NewFromConfig(cfg)
}

type stubAPI struct {
	out   *cloudwatchlogs.GetLogEventsOutput
	err   error
	input *cloudwatchlogs.GetLogEventsInput
}

func (s *stubAPI) GetLogEvents(_ context.Context, in *cloudwatchlogs.GetLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	s.input = in
	return s.out, s.err
}

func TestParse(t *testing.T) {
	sim, client := newSimClient(t)
	sim.PutLogLines("/ecs/worker", "ecs/main/abc123", "build ok", "ERR: disk full")

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	metrics := core.NewMetrics(prometheus.NewRegistry())
	r := cwlogs.NewReader(testConfig, client, zerolog.Nop(), cwlogs.WithMetrics(metrics), cwlogs.WithTracerProvider(tp))

	result := r.Parse(context.Background(), "abc123")
	assert.Equal(t, api.LogResult{HasErrors: true, Messages: []string{"build ok", "ERR: disk full"}}, result)

	var parse sdktrace.ReadOnlySpan
	for _, s := range spans.Ended() {
		if s.Name() == "cwlogs.Parse" {
			parse = s
		}
	}
	require.NotNil(t, parse)
	for _, s := range spans.Ended() {
		if s != parse {
			assert.Equal(t, parse.SpanContext().SpanID(), s.Parent().SpanID(), "span %q", s.Name())
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LogFetches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LogLines))
}

func TestParseCleanLogs(t *testing.T) {
	sim, client := newSimClient(t)
	sim.PutLogLines("/ecs/worker", "ecs/main/abc123", "starting", "done")

	result := cwlogs.NewReader(testConfig, client, zerolog.Nop()).Parse(context.Background(), "abc123")
	assert.False(t, result.HasErrors)
	assert.Equal(t, []string{"starting", "done"}, result.Messages)
}

func TestFetchLogsSkipsEventsWithoutMessage(t *testing.T) {
	sim, client := newSimClient(t)
	first, empty, last := "first", "", "last"
	sim.AppendLogEvents("/ecs/worker", "ecs/main/t1",
		simulator.LogEvent{Timestamp: 1, Message: &first},
		simulator.LogEvent{Timestamp: 2},
		simulator.LogEvent{Timestamp: 3, Message: &empty},
		simulator.LogEvent{Timestamp: 4, Message: &last},
	)

	lines := cwlogs.NewReader(testConfig, client, zerolog.Nop()).FetchLogs(context.Background(), "t1")
	assert.Equal(t, []string{"first", "last"}, lines)
}

func TestFetchLogsMissingStream(t *testing.T) {
	_, client := newSimClient(t)
	metrics := core.NewMetrics(prometheus.NewRegistry())

	lines := cwlogs.NewReader(testConfig, client, zerolog.Nop(), cwlogs.WithMetrics(metrics)).
		FetchLogs(context.Background(), "nope")
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LogFetches.WithLabelValues("failed")))
}

func TestFetchLogsAPIFailure(t *testing.T) {
	sim, client := newSimClient(t)
	sim.PutLogLines("/ecs/worker", "ecs/main/t1", "ERROR boom")
	sim.FailGetLogEvents(1)

	r := cwlogs.NewReader(testConfig, client, zerolog.Nop())
	result := r.Parse(context.Background(), "t1")
	assert.False(t, result.HasErrors)
	assert.Empty(t, result.Messages)

	// The failure is not sticky.
	assert.Equal(t, []string{"ERROR boom"}, r.FetchLogs(context.Background(), "t1"))
}

func TestFetchLogsRequest(t *testing.T) {
	stub := &stubAPI{out: &cloudwatchlogs.GetLogEventsOutput{}}
	cwlogs.NewReader(testConfig, stub, zerolog.Nop()).FetchLogs(context.Background(), "abc")

	require.NotNil(t, stub.input)
	assert.Equal(t, "/ecs/worker", aws.ToString(stub.input.LogGroupName))
	assert.Equal(t, "ecs/main/abc", aws.ToString(stub.input.LogStreamName))
	assert.True(t, aws.ToBool(stub.input.StartFromHead))
}

func TestFetchLogsOddResponses(t *testing.T) {
	tests := []struct {
		name string
		stub *stubAPI
	}{
		{"error", &stubAPI{err: errors.New("connection reset")}},
		{"nil output", &stubAPI{}},
		{"nil events", &stubAPI{out: &cloudwatchlogs.GetLogEventsOutput{}}},
		{"zero events", &stubAPI{out: &cloudwatchlogs.GetLogEventsOutput{Events: []cwtypes.OutputLogEvent{}}}},
		{"only blank events", &stubAPI{out: &cloudwatchlogs.GetLogEventsOutput{Events: []cwtypes.OutputLogEvent{{}, {Message: aws.String("")}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := cwlogs.NewReader(testConfig, tt.stub, zerolog.Nop())
			lines := r.FetchLogs(context.Background(), "abc")
			assert.NotNil(t, lines)
			assert.Empty(t, lines)
			assert.Equal(t, api.LogResult{Messages: []string{}}, r.Parse(context.Background(), "abc"))
		})
	}
}

func TestHasErrors(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		want     bool
	}{
		{"nil", nil, false},
		{"empty", []string{}, false},
		{"upper", []string{"ERROR: boom"}, true},
		{"title", []string{"ok", "Error in step 2"}, true},
		{"inside a word", []string{"picked a Berry"}, true},
		{"terrible", []string{"terrible weather"}, true},
		{"transfer", []string{"transfer complete"}, false},
		{"trigger", []string{"trigger fired"}, false},
		{"abort", []string{"abort"}, false},
		{"clean", []string{"build ok", "done"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cwlogs.HasErrors(tt.messages))
		})
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("ECS_ONESHOT_LOG_GROUP", "/ecs/worker")
	t.Setenv("ECS_ONESHOT_LOG_STREAM_PREFIX", "ecs/main/")

	c := cwlogs.ConfigFromEnv()
	assert.Equal(t, testConfig, c)
	assert.NoError(t, c.Validate())
	assert.Equal(t, "ecs/main/abc", c.StreamName("abc"))

	assert.Error(t, cwlogs.Config{}.Validate())
}

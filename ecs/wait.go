package ecs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sockerless/ecs-oneshot/api"
)

// UnknownStatusWarnThreshold is the number of consecutive failed status
// checks after which a warning is logged. The wait continues regardless.
const UnknownStatusWarnThreshold = 3

// WaitForCompletion polls the task every checkInterval until it reports
// STOPPED or maxIterations checks have been made. The first check happens
// one interval after the call. It returns true if the task stopped and
// false on timeout. Failed checks count as not stopped. If ctx is done the
// wait ends with (false, ctx.Err()).
func (m *TaskManager) WaitForCompletion(ctx context.Context, taskID string, checkInterval time.Duration, maxIterations int) (bool, error) {
	if checkInterval <= 0 {
		return false, &api.InvalidParameterError{Message: fmt.Sprintf("check interval must be positive, got %s", checkInterval)}
	}
	if maxIterations <= 0 {
		return false, nil
	}

	ctx, span := m.tracer.Start(ctx, "ecs.WaitForCompletion", trace.WithAttributes(
		attribute.String("ecs.task_id", taskID),
		attribute.Int64("ecs.check_interval_ms", checkInterval.Milliseconds()),
		attribute.Int("ecs.max_iterations", maxIterations),
	))
	defer span.End()

	start := time.Now()
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	remaining := maxIterations
	unknown := 0
	for {
		select {
		case <-ctx.Done():
			m.metrics.RecordWait("cancelled", time.Since(start))
			span.SetStatus(codes.Error, "cancelled")
			m.logger.Debug().Str("task", taskID).Msg("wait cancelled")
			return false, ctx.Err()
		case <-ticker.C:
		}
		// A tick and cancellation can be ready together.
		if err := ctx.Err(); err != nil {
			m.metrics.RecordWait("cancelled", time.Since(start))
			span.SetStatus(codes.Error, "cancelled")
			return false, err
		}

		status, known := m.PollStatus(ctx, taskID)
		if known && status.IsTerminal() {
			span.SetAttributes(attribute.Int("ecs.checks", maxIterations-remaining+1))
			m.metrics.RecordWait("completed", time.Since(start))
			m.logger.Info().Str("task", taskID).Dur("elapsed", time.Since(start)).Msg("task stopped")
			return true, nil
		}

		if known {
			unknown = 0
			m.logger.Debug().Str("task", taskID).Str("status", string(status)).Int("remaining", remaining-1).Msg("task not stopped yet")
		} else {
			unknown++
			if unknown == UnknownStatusWarnThreshold {
				m.logger.Warn().Str("task", taskID).Int("consecutive", unknown).Msg("task status unavailable")
			}
		}

		remaining--
		// A poll cut short by cancellation reads as unknown; report the
		// cancellation rather than a timeout.
		if err := ctx.Err(); err != nil {
			m.metrics.RecordWait("cancelled", time.Since(start))
			span.SetStatus(codes.Error, "cancelled")
			return false, err
		}
		if remaining == 0 {
			span.SetAttributes(attribute.Int("ecs.checks", maxIterations))
			span.SetStatus(codes.Error, "timeout")
			m.metrics.RecordWait("timeout", time.Since(start))
			m.logger.Warn().Str("task", taskID).Int("checks", maxIterations).Msg("task did not stop in time")
			return false, nil
		}
	}
}

// DispatchAndWait dispatches one task and waits for it to stop under
// policy. Zero fields of policy take the defaults. On success it returns the
// task ID. A timeout is reported as *api.CompletionTimeoutError, which
// carries the task ID so its logs can still be read.
func (m *TaskManager) DispatchAndWait(ctx context.Context, policy WaitPolicy) (string, error) {
	policy = policy.withDefaults()

	taskID, err := m.Dispatch(ctx)
	if err != nil {
		return "", err
	}

	done, err := m.WaitForCompletion(ctx, taskID, policy.CheckInterval, policy.MaxIterations)
	if err != nil {
		return "", fmt.Errorf("waiting for task %s: %w", taskID, err)
	}
	if !done {
		return "", &api.CompletionTimeoutError{
			TaskID:     taskID,
			Iterations: policy.MaxIterations,
			Interval:   policy.CheckInterval,
		}
	}
	return taskID, nil
}

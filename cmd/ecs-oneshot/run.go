package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sockerless/ecs-oneshot/api"
)

func newRunCmd(a *app) *cobra.Command {
	var fetchOnTimeout, asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch a task, wait for it to stop and check its logs",
		Long: `run starts one task, polls until it stops or the wait budget
(check-interval x max-iterations) runs out, then prints the task's log
lines. It exits non-zero if the task could not be started, did not stop in
time, or logged a line containing "err".`,
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if err := a.ecs.Validate(); err != nil {
				return err
			}
			if err := a.logs.Validate(); err != nil {
				return err
			}

			taskID, err := a.taskManager().DispatchAndWait(cmd.Context(), a.ecs.Wait)
			if err != nil {
				var timeout *api.CompletionTimeoutError
				if fetchOnTimeout && errors.As(err, &timeout) {
					a.logger.Warn().Str("task", timeout.TaskID).Msg("fetching logs of a task that may still be running")
					result := a.logReader().Parse(cmd.Context(), timeout.TaskID)
					if perr := printResult(cmd.OutOrStdout(), result, asJSON); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			}

			result := a.logReader().Parse(cmd.Context(), taskID)
			if err := printResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if result.HasErrors {
				return fmt.Errorf("task %s: %w", taskID, errLogErrors)
			}
			a.logger.Info().Str("task", taskID).Int("lines", len(result.Messages)).Msg("task finished cleanly")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&fetchOnTimeout, "fetch-logs-on-timeout", false, "Print the task's logs even if it did not stop in time")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the log result as JSON")
	return cmd
}

func printResult(w io.Writer, result api.LogResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, m := range result.Messages {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}

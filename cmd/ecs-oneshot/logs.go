package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "logs <task-id>",
		Short: "Print a task's log lines and check them for errors",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			if err := a.logs.Validate(); err != nil {
				return err
			}
			result := a.logReader().Parse(cmd.Context(), args[0])
			if err := printResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if result.HasErrors {
				return fmt.Errorf("task %s: %w", args[0], errLogErrors)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the log result as JSON")
	return cmd
}

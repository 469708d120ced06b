package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Print a task's last status",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			if a.ecs.Cluster == "" {
				return fmt.Errorf("ECS cluster name is required")
			}
			status, known := a.taskManager().PollStatus(cmd.Context(), args[0])
			if !known {
				return fmt.Errorf("status of task %s is unavailable", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		}),
	}
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/workflow"
)

// pollFlags override the configured poll bounds. Zero keeps the defaults.
type pollFlags struct {
	interval time.Duration
	timeout  time.Duration
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Poll interval (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Poll timeout (default from config)")
}

func (f pollFlags) options() workflow.Options {
	return workflow.Options{Interval: f.interval, Timeout: f.timeout}
}

func workflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect and wait for risk data workflows",
	}
	cmd.AddCommand(workflowGetCmd(), workflowPollCmd(), workflowPollBatchCmd())
	return cmd
}

func workflowGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Show the current status of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			status, err := a.client.GetWorkflow(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		}),
	}
}

func workflowPollCmd() *cobra.Command {
	var flags pollFlags
	cmd := &cobra.Command{
		Use:   "poll <workflow-id>",
		Short: "Wait until a workflow completes",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			status, err := a.poller.PollWorkflow(cmd.Context(), ids[0], flags.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		}),
	}
	flags.register(cmd)
	return cmd
}

func workflowPollBatchCmd() *cobra.Command {
	var flags pollFlags
	cmd := &cobra.Command{
		Use:   "poll-batch <workflow-id>...",
		Short: "Wait until none of the workflows is in progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			page, err := a.poller.PollBatch(cmd.Context(), ids, flags.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page.Workflows)
		}),
	}
	flags.register(cmd)
	return cmd
}

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

func edmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edm",
		Short: "Manage exposure data modules",
	}
	cmd.AddCommand(edmFindCmd(), edmSearchCmd(), edmCreateCmd(), edmDeleteCmd())
	return cmd
}

func edmFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Show the EDM with exactly this name",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			found, err := a.edms.LookupByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		}),
	}
}

func edmSearchCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List EDMs matching a filter",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			edms, err := a.edms.SearchAll(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), edms)
		}),
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Server-side filter expression")
	return cmd
}

func edmCreateCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an EDM and wait for the creation workflow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			body := types.CreateEDMRequest{ExposureName: args[0], ServerName: server}
			resp, err := a.edms.Create(cmd.Context(), args[0], server)
			if err != nil {
				return err
			}
			return a.printWorkflowResult(cmd, resp, args[0], body)
		}),
	}
	cmd.Flags().StringVar(&server, "server", "databridge-1", "Database server to create the EDM on")
	return cmd
}

func edmDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an EDM and wait for the deletion workflow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			resp, err := a.edms.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printWorkflowResult(cmd, resp, args[0], map[string]string{"exposureName": args[0]})
		}),
	}
}

// printWorkflowResult prints the response of a submit-then-poll request and
// journals the completed workflow it carries.
func (a *app) printWorkflowResult(cmd *cobra.Command, resp *client.Response, name string, request any) error {
	if len(resp.Body) == 0 {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		return err
	}
	var status types.WorkflowStatus
	if err := resp.JSON(&status); err != nil {
		return err
	}
	a.journalSettled(cmd.Context(), storage.KindWorkflow, workflow.StrategySingle, name, request, status)
	return printJSON(cmd.OutOrStdout(), status)
}

func (a *app) journalSettled(ctx context.Context, kind, strategy, name string, request any, status types.WorkflowStatus) {
	if status.ID <= 0 {
		return
	}
	a.tracker.Submitted(ctx, kind, status.ID, name, request)
	a.tracker.Settled(ctx, kind, strategy, []types.WorkflowStatus{status})
}

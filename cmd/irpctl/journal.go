package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/storage"
)

var errNoJournal = errors.New("journal is disabled; set journal.path")

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and maintain the local submission journal",
	}
	cmd.AddCommand(journalListCmd(), journalRefreshCmd(), journalPruneCmd())
	return cmd
}

func journalListCmd() *cobra.Command {
	var filter storage.ListSubmissionsFilter
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journalled submissions, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.store == nil {
				return errNoJournal
			}
			records, err := a.store.ListSubmissions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tKIND\tREMOTE ID\tNAME\tSTATUS\tUPDATED")
			for _, r := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					r.ID, r.Kind, r.RemoteID, r.Name, r.Status, r.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "Only submissions of this kind")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only submissions with this status")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum number of submissions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func journalRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the remote status of unsettled submissions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.store == nil {
				return errNoJournal
			}
			updated, err := a.tracker.Refresh(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %d submissions\n", updated)
			return err
		}),
	}
}

func journalPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete settled submissions older than a duration",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.store == nil {
				return errNoJournal
			}
			deleted, err := a.store.DeleteOldSubmissions(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d submissions\n", deleted)
			return err
		}),
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of deleted submissions")
	return cmd
}

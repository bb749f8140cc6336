package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/mri"
	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

func mriCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mri",
		Short: "Run MRI imports of account and location files",
	}
	cmd.AddCommand(mriImportCmd(), mriPollCmd(), mriSyncMappingCmd())
	return cmd
}

func mriImportCmd() *cobra.Command {
	in := types.ImportFiles{
		Delimiter: mri.DefaultDelimiter,
		SkipLines: mri.DefaultSkipLines,
		Currency:  mri.DefaultCurrency,
	}
	var wait bool
	var flags pollFlags
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upload account, location and mapping files and submit an MRI import",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			workflowID, req, err := a.imports.SubmitFromFiles(ctx, in)
			if err != nil {
				return err
			}
			a.tracker.Submitted(ctx, storage.KindImport, workflowID, in.EDMName+"/"+in.PortfolioName, req)

			if !wait {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"workflow_id": workflowID})
			}
			statuses, err := a.imports.PollImportJobs(ctx, []int64{workflowID}, flags.options())
			if err != nil {
				a.tracker.Failed(ctx, storage.KindImport, []int64{workflowID}, err)
				return err
			}
			a.tracker.Settled(ctx, storage.KindImport, workflow.StrategyBatchList, statuses)
			return printJSON(cmd.OutOrStdout(), statuses)
		}),
	}
	cmd.Flags().StringVar(&in.EDMName, "edm", "", "EDM name")
	cmd.Flags().StringVar(&in.PortfolioName, "portfolio", "", "Portfolio name")
	cmd.Flags().StringVar(&in.AccountsFile, "accounts", "", "Accounts file name in the data directory")
	cmd.Flags().StringVar(&in.LocationsFile, "locations", "", "Locations file name in the data directory")
	cmd.Flags().StringVar(&in.MappingFile, "mapping", "", "Mapping file name in the mapping directory")
	cmd.Flags().StringVar(&in.FilesDir, "data-dir", "", "Data directory (default from config)")
	cmd.Flags().StringVar(&in.MappingDir, "mapping-dir", "", "Mapping directory (default from config)")
	cmd.Flags().StringVar(&in.Delimiter, "delimiter", mri.DefaultDelimiter, "Field delimiter name")
	cmd.Flags().IntVar(&in.SkipLines, "skip-lines", mri.DefaultSkipLines, "Header lines to skip")
	cmd.Flags().StringVar(&in.Currency, "currency", mri.DefaultCurrency, "Currency code")
	cmd.Flags().BoolVar(&in.AppendLocations, "append-locations", false, "Append locations to existing accounts")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the import workflow to complete")
	flags.register(cmd)
	return cmd
}

func mriPollCmd() *cobra.Command {
	var flags pollFlags
	cmd := &cobra.Command{
		Use:   "poll <workflow-id>...",
		Short: "Wait until none of the import workflows is in progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			statuses, err := a.imports.PollImportJobs(cmd.Context(), ids, flags.options())
			if err != nil {
				a.tracker.Failed(cmd.Context(), storage.KindImport, ids, err)
				return err
			}
			a.tracker.Settled(cmd.Context(), storage.KindImport, workflow.StrategyBatchList, statuses)
			return printJSON(cmd.OutOrStdout(), statuses)
		}),
	}
	flags.register(cmd)
	return cmd
}

func mriSyncMappingCmd() *cobra.Command {
	var accounts, locations string
	cmd := &cobra.Command{
		Use:   "sync-mapping <mapping-file>",
		Short: "Add mapping entries for data file columns the mapping does not cover",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			dataDir := a.cfg.Files.DataDir
			changed, err := a.imports.SyncMapping(args[0], filepath.Join(dataDir, accounts), filepath.Join(dataDir, locations))
			if err != nil {
				return err
			}
			if changed {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already covers every column\n", args[0])
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&accounts, "accounts", "", "Accounts file name in the data directory")
	cmd.Flags().StringVar(&locations, "locations", "", "Locations file name in the data directory")
	_ = cmd.MarkFlagRequired("accounts")
	_ = cmd.MarkFlagRequired("locations")
	return cmd
}

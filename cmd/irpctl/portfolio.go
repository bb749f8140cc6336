package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/portfolio"
	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

// readJSONFile decodes a JSON input file such as a list of portfolio specs.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return irperr.Wrap(irperr.KindFile, err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return irperr.Wrap(irperr.KindFile, err, "invalid JSON in %s", path)
	}
	return nil
}

func portfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage portfolios, geohaz jobs and sub-portfolio mapping",
	}
	cmd.AddCommand(
		portfolioCreateCmd(),
		portfolioFindCmd(),
		portfolioAccountsCmd(),
		portfolioGeohazCmd(),
		portfolioPollGeohazCmd(),
		portfolioMapCmd(),
	)
	return cmd
}

func portfolioCreateCmd() *cobra.Command {
	var spec types.PortfolioSpec
	var fromFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one portfolio, or each portfolio listed in --from-file",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			specs := []types.PortfolioSpec{spec}
			if fromFile != "" {
				specs = nil
				if err := readJSONFile(fromFile, &specs); err != nil {
					return err
				}
			}
			if err := validate.NonEmptyList(specs, "portfolio_data_list"); err != nil {
				return err
			}

			// Creation is synchronous, so each portfolio is journalled as finished
			ids := make([]int64, 0, len(specs))
			for _, s := range specs {
				id, body, err := a.portfolios.Create(cmd.Context(), s.EDMName, s.PortfolioName, s.PortfolioNumber, s.Description)
				if err != nil {
					if len(ids) > 0 {
						_ = printJSON(cmd.OutOrStdout(), ids)
					}
					return err
				}
				a.journalSettled(cmd.Context(), storage.KindPortfolio, "", s.PortfolioName, body,
					types.WorkflowStatus{ID: id, Status: types.StatusFinished})
				ids = append(ids, id)
			}
			return printJSON(cmd.OutOrStdout(), ids)
		}),
	}
	cmd.Flags().StringVar(&spec.EDMName, "edm", "", "EDM name")
	cmd.Flags().StringVar(&spec.PortfolioName, "name", "", "Portfolio name")
	cmd.Flags().StringVar(&spec.PortfolioNumber, "number", "", "Portfolio number")
	cmd.Flags().StringVar(&spec.Description, "description", "", "Portfolio description")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "JSON list of portfolios to create")
	return cmd
}

func portfolioFindCmd() *cobra.Command {
	var edmName string
	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Show the portfolio with exactly this name",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			edm, err := a.edms.LookupByName(cmd.Context(), edmName)
			if err != nil {
				return err
			}
			found, err := a.portfolios.LookupByName(cmd.Context(), edm.ExposureID, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		}),
	}
	cmd.Flags().StringVar(&edmName, "edm", "", "EDM name")
	_ = cmd.MarkFlagRequired("edm")
	return cmd
}

func portfolioAccountsCmd() *cobra.Command {
	var edmName string
	cmd := &cobra.Command{
		Use:   "accounts <portfolio>",
		Short: "List the accounts of a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			edm, err := a.edms.LookupByName(cmd.Context(), edmName)
			if err != nil {
				return err
			}
			found, err := a.portfolios.LookupByName(cmd.Context(), edm.ExposureID, args[0])
			if err != nil {
				return err
			}
			accounts, err := a.portfolios.SearchAccounts(cmd.Context(), edm.ExposureID, found.PortfolioID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), accounts)
		}),
	}
	cmd.Flags().StringVar(&edmName, "edm", "", "EDM name")
	_ = cmd.MarkFlagRequired("edm")
	return cmd
}

func portfolioGeohazCmd() *cobra.Command {
	spec := types.GeohazSpec{Version: portfolio.DefaultGeohazVersion}
	var fromFile string
	cmd := &cobra.Command{
		Use:   "geohaz",
		Short: "Submit geohaz jobs for one portfolio, or each listed in --from-file",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			specs := []types.GeohazSpec{spec}
			if fromFile != "" {
				specs = nil
				if err := readJSONFile(fromFile, &specs); err != nil {
					return err
				}
			}
			if err := validate.NonEmptyList(specs, "geohaz_data_list"); err != nil {
				return err
			}

			ids := make([]int64, 0, len(specs))
			for _, s := range specs {
				id, body, err := a.portfolios.SubmitGeohaz(cmd.Context(), s)
				if err != nil {
					if len(ids) > 0 {
						_ = printJSON(cmd.OutOrStdout(), ids)
					}
					return err
				}
				a.tracker.Submitted(cmd.Context(), storage.KindGeohaz, id, s.PortfolioName, body)
				ids = append(ids, id)
			}
			return printJSON(cmd.OutOrStdout(), ids)
		}),
	}
	cmd.Flags().StringVar(&spec.EDMName, "edm", "", "EDM name")
	cmd.Flags().StringVar(&spec.PortfolioName, "portfolio", "", "Portfolio name")
	cmd.Flags().StringVar(&spec.Version, "version", portfolio.DefaultGeohazVersion, "Geocode engine version")
	cmd.Flags().BoolVar(&spec.HazardEQ, "hazard-eq", false, "Add the earthquake hazard layer")
	cmd.Flags().BoolVar(&spec.HazardWS, "hazard-ws", false, "Add the windstorm hazard layer")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "JSON list of geohaz submissions")
	return cmd
}

func portfolioPollGeohazCmd() *cobra.Command {
	var flags pollFlags
	cmd := &cobra.Command{
		Use:   "poll-geohaz <job-id>...",
		Short: "Wait until every geohaz job completes",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			statuses, err := a.portfolios.PollGeohazJobs(cmd.Context(), ids, flags.options())
			if err != nil {
				a.tracker.Failed(cmd.Context(), storage.KindGeohaz, ids, err)
				return err
			}
			a.tracker.Settled(cmd.Context(), storage.KindGeohaz, workflow.StrategyBatchEach, statuses)
			return printJSON(cmd.OutOrStdout(), statuses)
		}),
	}
	flags.register(cmd)
	return cmd
}

func portfolioMapCmd() *cobra.Command {
	var run types.MappingRun
	cmd := &cobra.Command{
		Use:   "map <portfolio>",
		Short: "Run the sub-portfolio mapping script for an imported portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			run.PortfolioName = args[0]
			result, err := a.portfolios.ExecuteMapping(cmd.Context(), run)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().StringVar(&run.EDMName, "edm", "", "EDM name")
	cmd.Flags().StringVar(&run.ImportFile, "import-file", "", "Import file identifier selecting the mapping script")
	cmd.Flags().StringVar(&run.CycleType, "cycle-type", "", "Cycle type selecting the scripts directory")
	cmd.Flags().StringVar(&run.Connection, "connection", portfolio.DefaultConnection, "SQL connection name")
	return cmd
}

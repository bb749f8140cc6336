// Command irpctl drives Risk Modeler exposure, geohaz and MRI import
// workflows and serves the local submission journal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/config"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "irpctl",
	Short:         "Risk Modeler integration client",
	Long:          `Create EDMs and portfolios, run geohaz and MRI import jobs, and track their workflows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./config.yaml)")

	rootCmd.AddCommand(
		workflowCmd(),
		edmCmd(),
		portfolioCmd(),
		mriCmd(),
		journalCmd(),
		serveCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("irpctl failed")
		stop()
		os.Exit(1)
	}
}

// withApp loads configuration, wires the components and runs fn.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.ConfigureLogger(logrus.StandardLogger())

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, a, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID '%s': %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

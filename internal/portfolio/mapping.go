package portfolio

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // America/New_York on hosts without zoneinfo

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/pkg/types"
)

// DefaultConnection is the SQL connection mapping scripts run against.
const DefaultConnection = "DATABRIDGE"

const (
	mappingBaseDir   = "portfolio_mapping"
	mappingTimezone  = "America/New_York"
	mappingTimestamp = "2006-01-02 15:04:05.000"
)

// ScriptName is the mapping script for an import file identifier.
func ScriptName(importFile string) string {
	return fmt.Sprintf("2b_Query_To_Create_Sub_Portfolios_%s_RMS_BackEnd.sql", importFile)
}

// ResolveCycleTypeDir finds the mapping subdirectory of scriptsDir for a
// cycle type. Cycle types containing "test" use the test directory; others
// match a directory name case-insensitively. The on-disk name is returned.
func ResolveCycleTypeDir(scriptsDir, cycleType string) (string, error) {
	target := strings.ToLower(cycleType)
	if strings.Contains(target, "test") {
		target = "test"
	}

	base := filepath.Join(scriptsDir, mappingBaseDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", irperr.Validation("Portfolio mapping base directory not found: %s", base)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.ToLower(entry.Name()) == target {
			return entry.Name(), nil
		}
	}
	return "", irperr.Validation("Portfolio mapping directory not found for cycle type '%s'. Expected directory: %s/%s",
		cycleType, mappingBaseDir, target)
}

// ExecuteMapping runs the sub-portfolio mapping script for an imported
// portfolio. A missing script is not an error; the result is SKIPPED.
func (m *Manager) ExecuteMapping(ctx context.Context, run types.MappingRun) (types.MappingResult, error) {
	if err := validate.All(
		validate.NonEmptyString(run.PortfolioName, "portfolio_name"),
		validate.NonEmptyString(run.EDMName, "edm_name"),
		validate.NonEmptyString(run.ImportFile, "import_file"),
		validate.NonEmptyString(run.CycleType, "cycle_type"),
	); err != nil {
		return types.MappingResult{}, err
	}
	if m.scripts == nil {
		return types.MappingResult{}, irperr.Validation("no SQL scripts directory configured for portfolio mapping")
	}
	connection := run.Connection
	if connection == "" {
		connection = DefaultConnection
	}

	cycleDir, err := ResolveCycleTypeDir(m.scripts.Dir(), run.CycleType)
	if err != nil {
		return types.MappingResult{}, err
	}

	edm, err := m.edms.LookupByName(ctx, run.EDMName)
	if err != nil {
		return types.MappingResult{}, err
	}
	if edm.DatabaseName == "" {
		return types.MappingResult{}, irperr.API("Failed to extract EDM details for '%s': missing 'databaseName'", run.EDMName)
	}
	portfolio, err := m.LookupByName(ctx, edm.ExposureID, run.PortfolioName)
	if err != nil {
		return types.MappingResult{}, err
	}

	script := types.ScriptInfo{
		Name: ScriptName(run.ImportFile),
	}
	script.Path = path.Join(mappingBaseDir, cycleDir, script.Name)

	if !m.scripts.Exists(script.Path) {
		script.Status = types.ScriptNotFound
		m.log.WithField("script", script.Path).Info("Mapping script not found, skipping")
		return types.MappingResult{
			Status:  types.MappingSkipped,
			Message: fmt.Sprintf("SQL script not found for %q - skipping mapping", run.PortfolioName),
			Script:  script,
		}, nil
	}

	stamp, err := m.timestamp()
	if err != nil {
		return types.MappingResult{}, err
	}
	params := map[string]any{
		"EDM_FULL_NAME":  edm.DatabaseName,
		"PORTFOLIO_ID":   portfolio.PortfolioID,
		"DATETIME_VALUE": stamp,
	}

	m.log.WithFields(logrus.Fields{
		"portfolio":  run.PortfolioName,
		"script":     script.Path,
		"connection": connection,
	}).Info("Executing portfolio mapping")
	count, err := m.scripts.Run(ctx, script.Path, connection, params)
	if err != nil {
		return types.MappingResult{}, irperr.Wrap(irperr.KindAPI, err, "Failed to execute portfolio mapping for '%s'", run.PortfolioName)
	}

	script.Status = types.ScriptExecuted
	return types.MappingResult{
		Status:          types.MappingFinished,
		Message:         fmt.Sprintf("Portfolio mapping executed successfully for %q", run.PortfolioName),
		ResultSetsCount: count,
		Script:          script,
		Parameters:      params,
	}, nil
}

func (m *Manager) timestamp() (string, error) {
	loc, err := time.LoadLocation(mappingTimezone)
	if err != nil {
		return "", fmt.Errorf("failed to load timezone %s: %w", mappingTimezone, err)
	}
	return m.now().In(loc).Format(mappingTimestamp), nil
}

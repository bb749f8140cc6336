package portfolio

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

// DefaultGeohazVersion is the geocode engine version used when none is given.
const DefaultGeohazVersion = "22.0"

// SubmitGeohaz submits a geocode job, with optional earthquake and windstorm
// hazard layers, against a portfolio that has at least one location. It
// returns the job ID and the request body sent.
func (m *Manager) SubmitGeohaz(ctx context.Context, spec types.GeohazSpec) (int64, types.GeohazRequest, error) {
	var body types.GeohazRequest
	if err := validate.All(
		validate.NonEmptyString(spec.PortfolioName, "portfolio_name"),
		validate.NonEmptyString(spec.EDMName, "edm_name"),
	); err != nil {
		return 0, body, err
	}

	edm, err := m.edms.LookupByName(ctx, spec.EDMName)
	if err != nil {
		return 0, body, err
	}
	portfolio, err := m.LookupByName(ctx, edm.ExposureID, spec.PortfolioName)
	if err != nil {
		return 0, body, err
	}
	if portfolio.URI == "" {
		return 0, body, irperr.API("Failed to extract portfolio details for portfolio '%s': missing 'uri'", spec.PortfolioName)
	}

	if err := m.checkHasLocations(ctx, edm.ExposureID, portfolio); err != nil {
		return 0, body, err
	}

	body = buildGeohazRequest(portfolio.URI, spec)

	m.log.WithFields(logrus.Fields{
		"portfolio": spec.PortfolioName,
		"layers":    len(body.Settings.Layers),
	}).Info("Submitting geohaz job")
	resp, err := m.api.Request(ctx, http.MethodPost, client.PathGeohazJobs, client.WithJSON(body))
	if err != nil {
		return 0, body, fmt.Errorf("failed to execute geohaz for portfolio '%s': %w", portfolio.URI, err)
	}
	id, err := client.IntIDFromLocation(resp, "portfolio geohaz")
	if err != nil {
		return 0, body, err
	}
	return id, body, nil
}

func (m *Manager) checkHasLocations(ctx context.Context, exposureID int64, portfolio types.Portfolio) error {
	accounts, err := m.SearchAccounts(ctx, exposureID, portfolio.PortfolioID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return irperr.API("Portfolio '%s' does not have any Accounts/Locations to be GeoHaz'd", portfolio.PortfolioName)
	}

	locations := 0
	for _, account := range accounts {
		if account.LocationsCount == nil {
			return irperr.API("Failed to validate locations count for portfolio '%s': account %d is missing 'locationsCount'",
				portfolio.PortfolioName, account.AccountID)
		}
		locations += *account.LocationsCount
		if locations > 0 {
			return nil
		}
	}
	return irperr.API("Portfolio '%s' has accounts but no locations to be GeoHaz'd", portfolio.PortfolioName)
}

func buildGeohazRequest(portfolioURI string, spec types.GeohazSpec) types.GeohazRequest {
	version := spec.Version
	if version == "" {
		version = DefaultGeohazVersion
	}
	var geocodeOpts any = types.DefaultGeocodeLayerOptions()
	if spec.GeocodeLayerOptions != nil {
		geocodeOpts = spec.GeocodeLayerOptions
	}
	var hazardOpts any = types.DefaultHazardLayerOptions()
	if spec.HazardLayerOptions != nil {
		hazardOpts = spec.HazardLayerOptions
	}

	layers := []types.GeohazLayer{{
		Type:         "geocode",
		Name:         "geocode",
		EngineType:   "RL",
		Version:      version,
		LayerOptions: geocodeOpts,
	}}
	if spec.HazardEQ {
		layers = append(layers, types.GeohazLayer{
			Type: "hazard", Name: "earthquake", EngineType: "RL", Version: version, LayerOptions: hazardOpts,
		})
	}
	if spec.HazardWS {
		layers = append(layers, types.GeohazLayer{
			Type: "hazard", Name: "windstorm", EngineType: "RL", Version: version, LayerOptions: hazardOpts,
		})
	}

	return types.GeohazRequest{
		ResourceURI:  portfolioURI,
		ResourceType: "portfolio",
		Settings:     types.GeohazSettings{Layers: layers},
	}
}

// SubmitGeohazMany submits each geohaz job in order and stops at the first
// failure.
func (m *Manager) SubmitGeohazMany(ctx context.Context, specs []types.GeohazSpec) ([]int64, error) {
	if err := validate.NonEmptyList(specs, "geohaz_data_list"); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(specs))
	for _, spec := range specs {
		id, _, err := m.SubmitGeohaz(ctx, spec)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetGeohazJob fetches a geohaz job status.
func (m *Manager) GetGeohazJob(ctx context.Context, jobID int64) (types.WorkflowStatus, error) {
	if err := validate.PositiveInt(jobID, "job_id"); err != nil {
		return types.WorkflowStatus{}, err
	}

	resp, err := m.api.Request(ctx, http.MethodGet, fmt.Sprintf(client.PathGeohazJobByID, jobID))
	if err != nil {
		return types.WorkflowStatus{}, fmt.Errorf("failed to get geohaz job status for job ID %d: %w", jobID, err)
	}
	var status types.WorkflowStatus
	if err := resp.JSON(&status); err != nil {
		return types.WorkflowStatus{}, err
	}
	return status, nil
}

// PollGeohazJob waits for one geohaz job.
func (m *Manager) PollGeohazJob(ctx context.Context, jobID int64, opts workflow.Options) (types.WorkflowStatus, error) {
	if opts.Label == "" {
		opts.Label = "GeoHaz job"
	}
	opts.TimeoutKind = irperr.KindJobTimeout
	return m.poller.PollJob(ctx, jobID, m.GetGeohazJob, opts)
}

// PollGeohazJobs waits for every geohaz job, fetching each job individually.
func (m *Manager) PollGeohazJobs(ctx context.Context, jobIDs []int64, opts workflow.Options) ([]types.WorkflowStatus, error) {
	if opts.Label == "" {
		opts.Label = "Batch geohaz jobs"
	}
	opts.TimeoutKind = irperr.KindJobTimeout
	return m.poller.PollEach(ctx, jobIDs, m.GetGeohazJob, opts)
}

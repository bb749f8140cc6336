// Package portfolio manages portfolios within an EDM: search and creation,
// geocode/hazard jobs, and the post-import portfolio mapping scripts.
package portfolio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/refdata"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

// PageSize is the page size used by SearchAll.
const PageSize = 100

// maxNumberLen is the longest portfolio number the API accepts.
const maxNumberLen = 20

// API issues synchronous requests.
type API interface {
	Request(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error)
}

// EDMResolver resolves an EDM by name.
type EDMResolver interface {
	LookupByName(ctx context.Context, name string) (types.EDM, error)
}

// Poller runs job poll loops.
type Poller interface {
	PollJob(ctx context.Context, id int64, fetch workflow.Fetcher, opts workflow.Options) (types.WorkflowStatus, error)
	PollEach(ctx context.Context, ids []int64, fetch workflow.Fetcher, opts workflow.Options) ([]types.WorkflowStatus, error)
}

// ScriptRunner runs SQL scripts by relative path.
type ScriptRunner interface {
	Dir() string
	Exists(rel string) bool
	Run(ctx context.Context, rel, connection string, params map[string]any) (int, error)
}

// Manager handles portfolio operations. All collaborators are supplied at
// construction.
type Manager struct {
	api     API
	edms    EDMResolver
	poller  Poller
	scripts ScriptRunner
	log     *logrus.Entry
	now     func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) { m.log = log }
}

// WithNow replaces the wall clock used for mapping timestamps.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a portfolio manager. scripts may be nil when portfolio
// mapping is not used.
func NewManager(api API, edms EDMResolver, poller Poller, scripts ScriptRunner, opts ...Option) *Manager {
	m := &Manager{
		api:     api,
		edms:    edms,
		poller:  poller,
		scripts: scripts,
		log:     logrus.NewEntry(logrus.StandardLogger()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NameFilter builds the server-side filter selecting a portfolio by name.
func NameFilter(name string) string {
	return fmt.Sprintf("portfolioName=\"%s\"", name)
}

// Search returns one page of portfolios in exposureID matching filter.
func (m *Manager) Search(ctx context.Context, exposureID int64, filter string, limit, offset int) ([]types.Portfolio, error) {
	if err := validate.All(
		validate.PositiveInt(exposureID, "exposure_id"),
		validate.PositiveInt(limit, "limit"),
		validate.NonNegativeInt(offset, "offset"),
	); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if filter != "" {
		params.Set("filter", filter)
	}

	resp, err := m.api.Request(ctx, http.MethodGet, fmt.Sprintf(client.PathPortfolios, exposureID), client.WithParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to search portfolios for exposure ID '%d': %w", exposureID, err)
	}
	var portfolios []types.Portfolio
	if err := resp.JSON(&portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

// SearchAll returns every matching portfolio, stopping at the first short page.
func (m *Manager) SearchAll(ctx context.Context, exposureID int64, filter string) ([]types.Portfolio, error) {
	if err := validate.PositiveInt(exposureID, "exposure_id"); err != nil {
		return nil, err
	}

	var all []types.Portfolio
	for offset := 0; ; offset += PageSize {
		page, err := m.Search(ctx, exposureID, filter, PageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
	}
}

// LookupByName resolves a portfolio name within exposureID to exactly one
// portfolio.
func (m *Manager) LookupByName(ctx context.Context, exposureID int64, name string) (types.Portfolio, error) {
	if err := validate.NonEmptyString(name, "portfolio_name"); err != nil {
		return types.Portfolio{}, err
	}
	portfolios, err := m.Search(ctx, exposureID, NameFilter(name), PageSize, 0)
	if err != nil {
		return types.Portfolio{}, err
	}
	return refdata.ExactlyOne(portfolios, "portfolio", name)
}

// SearchAccounts lists the accounts of a portfolio.
func (m *Manager) SearchAccounts(ctx context.Context, exposureID, portfolioID int64) ([]types.Account, error) {
	if err := validate.All(
		validate.PositiveInt(exposureID, "exposure_id"),
		validate.PositiveInt(portfolioID, "portfolio_id"),
	); err != nil {
		return nil, err
	}

	resp, err := m.api.Request(ctx, http.MethodGet, fmt.Sprintf(client.PathPortfolioAccts, exposureID, portfolioID))
	if err != nil {
		return nil, fmt.Errorf("failed to search portfolio accounts for exposure ID '%d' and portfolio ID '%d': %w",
			exposureID, portfolioID, err)
	}
	var accounts []types.Account
	if err := resp.JSON(&accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Create creates a portfolio in the EDM named edmName and returns its ID with
// the request body sent. A portfolio of the same name must not exist.
func (m *Manager) Create(ctx context.Context, edmName, name, number, description string) (int64, types.CreatePortfolioRequest, error) {
	var body types.CreatePortfolioRequest
	if err := validate.All(
		validate.NonEmptyString(edmName, "edm_name"),
		validate.NonEmptyString(name, "portfolio_name"),
		validate.NonEmptyString(number, "portfolio_number"),
	); err != nil {
		return 0, body, err
	}

	edm, err := m.edms.LookupByName(ctx, edmName)
	if err != nil {
		return 0, body, err
	}

	existing, err := m.Search(ctx, edm.ExposureID, NameFilter(name), PageSize, 0)
	if err != nil {
		return 0, body, err
	}
	if len(existing) > 0 {
		return 0, body, irperr.API("%d portfolios found with name %s, please use a unique name", len(existing), name)
	}

	body = types.CreatePortfolioRequest{
		PortfolioName:   name,
		PortfolioNumber: truncate(number, maxNumberLen),
		Description:     description,
	}

	m.log.WithFields(logrus.Fields{"edm": edmName, "portfolio": name}).Info("Creating portfolio")
	resp, err := m.api.Request(ctx, http.MethodPost, fmt.Sprintf(client.PathPortfolios, edm.ExposureID), client.WithJSON(body))
	if err != nil {
		return 0, body, fmt.Errorf("failed to create portfolio '%s' in exposure id '%d': %w", name, edm.ExposureID, err)
	}
	id, err := client.IntIDFromLocation(resp, "portfolio creation")
	if err != nil {
		return 0, body, err
	}
	return id, body, nil
}

// CreateMany creates each portfolio in order and stops at the first failure.
// Portfolios already created are left in place.
func (m *Manager) CreateMany(ctx context.Context, specs []types.PortfolioSpec) ([]int64, error) {
	if err := validate.NonEmptyList(specs, "portfolio_data_list"); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(specs))
	for _, spec := range specs {
		id, _, err := m.Create(ctx, spec.EDMName, spec.PortfolioName, spec.PortfolioNumber, spec.Description)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

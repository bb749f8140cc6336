// Package edm manages exposure data modules (EDMs).
package edm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/refdata"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/pkg/types"
)

// PageSize is the page size used by SearchAll.
const PageSize = 100

// API issues synchronous requests.
type API interface {
	Request(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error)
}

// Executor submits a request and waits for the resulting workflow.
type Executor interface {
	Execute(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error)
}

// Manager handles EDM operations.
type Manager struct {
	api  API
	exec Executor
	log  *logrus.Entry
}

// NewManager creates an EDM manager.
func NewManager(api API, exec Executor, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{api: api, exec: exec, log: log}
}

// NameFilter builds the server-side filter selecting an EDM by exact name.
func NameFilter(name string) string {
	return fmt.Sprintf("exposureName=\"%s\"", name)
}

// Search returns one page of EDMs matching filter.
func (m *Manager) Search(ctx context.Context, filter string, limit, offset int) ([]types.EDM, error) {
	if err := validate.All(
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

	resp, err := m.api.Request(ctx, http.MethodGet, client.PathExposures, client.WithParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to search EDMs with filter '%s': %w", filter, err)
	}
	var edms []types.EDM
	if err := resp.JSON(&edms); err != nil {
		return nil, err
	}
	return edms, nil
}

// SearchAll returns every EDM matching filter, following pages until a
// short page is returned.
func (m *Manager) SearchAll(ctx context.Context, filter string) ([]types.EDM, error) {
	var all []types.EDM
	for offset := 0; ; offset += PageSize {
		page, err := m.Search(ctx, filter, PageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
	}
}

// LookupByName resolves an EDM name to exactly one EDM.
func (m *Manager) LookupByName(ctx context.Context, name string) (types.EDM, error) {
	if err := validate.NonEmptyString(name, "edm_name"); err != nil {
		return types.EDM{}, err
	}

	m.log.WithField("edm", name).Debug("Looking up EDM")
	edms, err := m.Search(ctx, NameFilter(name), PageSize, 0)
	if err != nil {
		return types.EDM{}, err
	}
	return refdata.ExactlyOne(edms, "EDM", name)
}

// Create creates an EDM on serverName and waits for the creation workflow.
func (m *Manager) Create(ctx context.Context, name, serverName string) (*client.Response, error) {
	if err := validate.All(
		validate.NonEmptyString(name, "edm_name"),
		validate.NonEmptyString(serverName, "server_name"),
	); err != nil {
		return nil, err
	}

	body := types.CreateEDMRequest{ExposureName: name, ServerName: serverName}
	m.log.WithFields(logrus.Fields{"edm": name, "server": serverName}).Info("Creating EDM")

	resp, err := m.exec.Execute(ctx, http.MethodPost, client.PathExposures, client.WithJSON(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create EDM '%s': %w", name, err)
	}
	return resp, nil
}

// Delete removes the EDM named name and waits for the deletion workflow.
func (m *Manager) Delete(ctx context.Context, name string) (*client.Response, error) {
	found, err := m.LookupByName(ctx, name)
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"edm": name, "exposure_id": found.ExposureID}).Info("Deleting EDM")
	resp, err := m.exec.Execute(ctx, http.MethodDelete, fmt.Sprintf(client.PathExposureByID, found.ExposureID))
	if err != nil {
		return nil, fmt.Errorf("failed to delete EDM '%s': %w", name, err)
	}
	return resp, nil
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/pkg/types"
)

// LocationHeader returns the Location header. A missing header is an API
// error naming errContext.
func LocationHeader(resp *Response, errContext string) (string, error) {
	if resp == nil || len(resp.Header.Values(HeaderLocation)) == 0 {
		return "", irperr.API("Location header missing from %s", errContext)
	}
	return resp.Header.Get(HeaderLocation), nil
}

// IDFromLocation returns the last path segment of the Location header.
func IDFromLocation(resp *Response, errContext string) (string, error) {
	location, err := LocationHeader(resp, errContext)
	if err != nil {
		return "", err
	}
	id := location[strings.LastIndex(location, "/")+1:]
	if id == "" {
		return "", irperr.API("Could not extract ID from Location header: %s", location)
	}
	return id, nil
}

// IntIDFromLocation is IDFromLocation for numeric identifiers.
func IntIDFromLocation(resp *Response, errContext string) (int64, error) {
	id, err := IDFromLocation(resp, errContext)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, irperr.Wrap(irperr.KindAPI, err, "non-numeric ID %q in Location header of %s", id, errContext)
	}
	return n, nil
}

// GetWorkflow fetches a workflow status by ID.
func (c *Client) GetWorkflow(ctx context.Context, workflowID int64) (types.WorkflowStatus, error) {
	if err := validate.PositiveInt(workflowID, "workflow_id"); err != nil {
		return types.WorkflowStatus{}, err
	}

	var status types.WorkflowStatus
	if err := c.GetJSON(ctx, fmt.Sprintf(PathWorkflowByID, workflowID), &status); err != nil {
		return types.WorkflowStatus{}, fmt.Errorf("failed to get workflow status for workflow ID %d: %w", workflowID, err)
	}
	return status, nil
}

// IsAccepted reports whether resp is one of the asynchronous-accept codes.
func IsAccepted(resp *Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted)
}

package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
)

// Execute issues a request and, when the API accepts it asynchronously,
// polls the workflow named by the Location header until it completes.
// Synchronous responses are returned unchanged.
func (p *Poller) Execute(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error) {
	resp, err := p.api.Request(ctx, method, path, opts...)
	if err != nil {
		return nil, err
	}
	if !client.IsAccepted(resp) {
		return resp, nil
	}

	workflowURL, err := client.LocationHeader(resp, method+" "+path)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"method":       method,
		"path":         path,
		"workflow_url": workflowURL,
	}).Info("Request accepted, polling workflow")

	return p.PollURL(ctx, workflowURL, p.single)
}

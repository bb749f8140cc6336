package workflow

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/pkg/types"
)

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// FetchAll reads every page of the workflow listing filtered by ids,
// starting from offset 0.
func (p *Poller) FetchAll(ctx context.Context, ids []int64) (*types.WorkflowPage, error) {
	joined := joinIDs(ids)
	all := &types.WorkflowPage{Workflows: []types.WorkflowStatus{}}

	for offset := 0; ; offset += p.pageSize {
		params := url.Values{}
		params.Set("ids", joined)
		params.Set("limit", strconv.Itoa(p.pageSize))
		params.Set("offset", strconv.Itoa(offset))

		resp, err := p.api.Request(ctx, http.MethodGet, client.PathWorkflows, client.WithParams(params))
		if err != nil {
			return nil, err
		}
		var page types.WorkflowPage
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		if !page.HasTotalMatchCount() {
			return nil, irperr.API("Missing 'totalMatchCount' in workflow batch response (offset %d)", offset)
		}

		all.TotalMatchCount = page.TotalMatchCount
		all.Workflows = append(all.Workflows, page.Workflows...)

		if len(all.Workflows) >= page.TotalMatchCount || offset+p.pageSize >= page.TotalMatchCount {
			return all, nil
		}
	}
}

// PollBatch waits until no workflow in ids reports an in-progress status,
// re-reading the full listing on every tick, and returns the final listing.
func (p *Poller) PollBatch(ctx context.Context, ids []int64, opts Options) (*types.WorkflowPage, error) {
	opts = p.orBatch(opts)
	if err := validate.All(validate.NonEmptyList(ids, "workflow_ids"), opts.validate()); err != nil {
		return nil, err
	}
	label := opts.label("Batch workflows")

	start := p.clock.Now()
	for {
		p.metrics.ObserveTick(StrategyBatchList)
		p.log.WithField("ids", joinIDs(ids)).Info("Polling batch workflow ids")

		page, err := p.FetchAll(ctx, ids)
		if err != nil {
			p.metrics.ObservePoll(StrategyBatchList, "error", p.clock.Now().Sub(start))
			return nil, err
		}

		if allSettled(page.Workflows) {
			p.metrics.ObservePoll(StrategyBatchList, "completed", p.clock.Now().Sub(start))
			return page, nil
		}

		if p.clock.Now().Sub(start) > opts.Timeout {
			p.metrics.ObservePoll(StrategyBatchList, "timeout", p.clock.Now().Sub(start))
			return nil, irperr.New(opts.timeoutKind(irperr.KindWorkflowTimeout),
				"%s did not complete within %s", label, opts.Timeout)
		}
		if err := p.clock.Sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
	}
}

func allSettled(statuses []types.WorkflowStatus) bool {
	for _, s := range statuses {
		if types.IsInProgress(s.Status) {
			return false
		}
	}
	return true
}

// PollEach waits until every handle in ids is out of the in-progress set,
// fetching one status per handle. A tick stops at the first in-progress
// handle and its partial results are discarded.
func (p *Poller) PollEach(ctx context.Context, ids []int64, fetch Fetcher, opts Options) ([]types.WorkflowStatus, error) {
	opts = p.orBatch(opts)
	if err := validate.All(validate.NonEmptyList(ids, "job_ids"), opts.validate()); err != nil {
		return nil, err
	}
	label := opts.label("Batch jobs")

	start := p.clock.Now()
	for {
		p.metrics.ObserveTick(StrategyBatchEach)
		p.log.WithField("ids", joinIDs(ids)).Info("Polling batch job ids")

		results, complete, err := p.eachTick(ctx, ids, fetch)
		if err != nil {
			p.metrics.ObservePoll(StrategyBatchEach, "error", p.clock.Now().Sub(start))
			return nil, err
		}
		if complete {
			p.metrics.ObservePoll(StrategyBatchEach, "completed", p.clock.Now().Sub(start))
			return results, nil
		}

		if p.clock.Now().Sub(start) > opts.Timeout {
			p.metrics.ObservePoll(StrategyBatchEach, "timeout", p.clock.Now().Sub(start))
			return nil, irperr.New(opts.timeoutKind(irperr.KindJobTimeout),
				"%s did not complete within %s", label, opts.Timeout)
		}
		if err := p.clock.Sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
	}
}

func (p *Poller) eachTick(ctx context.Context, ids []int64, fetch Fetcher) ([]types.WorkflowStatus, bool, error) {
	results := make([]types.WorkflowStatus, 0, len(ids))
	for _, id := range ids {
		status, err := fetch(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !status.HasStatus() {
			return nil, false, irperr.API("Missing 'status' in workflow response for job ID %d", id)
		}
		if types.IsInProgress(status.Status) {
			p.log.WithFields(logrus.Fields{"id": id, "status": status.Status}).Debug("Job still in progress")
			return nil, false, nil
		}
		results = append(results, status)
	}
	return results, true, nil
}

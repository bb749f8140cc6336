// Package workflow polls asynchronous Risk Modeler workflows and jobs until
// they reach a terminal status or the timeout elapses.
//
// The loops are intentionally simple: fetch, classify, check the timeout,
// sleep for exactly the interval. Transient failures are the transport's
// concern and are never retried here.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/metrics"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/pkg/types"
)

// Strategy names used for metrics.
const (
	StrategySingle    = "single"
	StrategyBatchList = "batch_list"
	StrategyBatchEach = "batch_each"
)

// API is the part of the transport the poller needs.
type API interface {
	Request(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error)
	GetWorkflow(ctx context.Context, workflowID int64) (types.WorkflowStatus, error)
}

// Fetcher returns the current status of a numeric handle.
type Fetcher func(ctx context.Context, id int64) (types.WorkflowStatus, error)

// Clock abstracts time so tests can drive the loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("poll cancelled: %w", ctx.Err())
	}
}

// Options bound a poll loop.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration

	// TimeoutKind classifies the timeout error. Zero selects the default of
	// the operation.
	TimeoutKind irperr.Kind

	// Label names the polled resource in logs and errors.
	Label string
}

// Default poll bounds.
const (
	DefaultInterval      = 10 * time.Second
	DefaultBatchInterval = 20 * time.Second
	DefaultTimeout       = 600000 * time.Second
)

// DefaultOptions are the single-handle defaults.
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// DefaultBatchOptions are the batch defaults.
func DefaultBatchOptions() Options {
	return Options{Interval: DefaultBatchInterval, Timeout: DefaultTimeout}
}

func (o Options) validate() error {
	return validate.All(
		validate.PositiveInt(int64(o.Interval), "interval"),
		validate.PositiveInt(int64(o.Timeout), "timeout"),
	)
}

func (o Options) timeoutKind(def irperr.Kind) irperr.Kind {
	if o.TimeoutKind != 0 {
		return o.TimeoutKind
	}
	return def
}

func (o Options) label(def string) string {
	if o.Label != "" {
		return o.Label
	}
	return def
}

// Poller runs poll loops against the API.
type Poller struct {
	api      API
	clock    Clock
	log      *logrus.Entry
	metrics  *metrics.Metrics
	single   Options
	batch    Options
	pageSize int
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Poller) { p.log = log }
}

// WithMetrics records poll ticks and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithDefaults sets the bounds used for any Interval or Timeout a caller
// leaves at zero.
func WithDefaults(single, batch Options) Option {
	return func(p *Poller) {
		p.single = single
		p.batch = batch
	}
}

// New creates a Poller.
func New(api API, opts ...Option) *Poller {
	p := &Poller{
		api:      api,
		clock:    realClock{},
		log:      logrus.NewEntry(logrus.StandardLogger()),
		single:   DefaultOptions(),
		batch:    DefaultBatchOptions(),
		pageSize: 100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SingleDefaults returns the configured single-handle options.
func (p *Poller) SingleDefaults() Options { return p.single }

// BatchDefaults returns the configured batch options.
func (p *Poller) BatchDefaults() Options { return p.batch }

func (p *Poller) orSingle(o Options) Options {
	return o.withDefaults(p.single)
}

func (p *Poller) orBatch(o Options) Options {
	return o.withDefaults(p.batch)
}

// withDefaults fills each unset bound from def independently.
func (o Options) withDefaults(def Options) Options {
	if o.Interval == 0 {
		o.Interval = def.Interval
	}
	if o.Timeout == 0 {
		o.Timeout = def.Timeout
	}
	return o
}

// PollURL polls a workflow addressed by URL until its status is completed
// and returns the final response.
func (p *Poller) PollURL(ctx context.Context, workflowURL string, opts Options) (*client.Response, error) {
	opts = p.orSingle(opts)
	if err := validate.All(validate.NonEmptyString(workflowURL, "workflow_url"), opts.validate()); err != nil {
		return nil, err
	}

	start := p.clock.Now()
	for {
		p.metrics.ObserveTick(StrategySingle)
		p.log.WithField("workflow_url", workflowURL).Info("Polling workflow")

		resp, err := p.api.Request(ctx, "GET", "", client.WithFullURL(workflowURL))
		if err != nil {
			p.metrics.ObservePoll(StrategySingle, "error", p.clock.Now().Sub(start))
			return nil, fmt.Errorf("failed to poll workflow %s: %w", workflowURL, err)
		}
		var status types.WorkflowStatus
		if err := resp.JSON(&status); err != nil {
			p.metrics.ObservePoll(StrategySingle, "error", p.clock.Now().Sub(start))
			return nil, err
		}
		if !status.HasStatus() {
			p.metrics.ObservePoll(StrategySingle, "error", p.clock.Now().Sub(start))
			return nil, irperr.API("Missing 'status' in workflow response from %s", workflowURL)
		}
		p.log.WithFields(logrus.Fields{
			"status":   status.Status,
			"progress": status.ProgressString(),
		}).Info("Workflow status")

		if types.IsCompleted(status.Status) {
			p.metrics.ObservePoll(StrategySingle, "completed", p.clock.Now().Sub(start))
			return resp, nil
		}

		if p.clock.Now().Sub(start) > opts.Timeout {
			p.metrics.ObservePoll(StrategySingle, "timeout", p.clock.Now().Sub(start))
			return nil, irperr.New(opts.timeoutKind(irperr.KindWorkflowTimeout),
				"%s did not complete within %s. Last status: %s",
				opts.label("Workflow"), opts.Timeout, status.Status)
		}
		if err := p.clock.Sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
	}
}

// PollJob polls a numeric handle through fetch until its status is
// completed. Both status and progress must be present on every tick.
func (p *Poller) PollJob(ctx context.Context, id int64, fetch Fetcher, opts Options) (types.WorkflowStatus, error) {
	opts = p.orSingle(opts)
	label := opts.label("Job")
	if err := validate.All(validate.PositiveInt(id, "job_id"), opts.validate()); err != nil {
		return types.WorkflowStatus{}, err
	}

	start := p.clock.Now()
	for {
		p.metrics.ObserveTick(StrategySingle)
		p.log.WithFields(logrus.Fields{"job": label, "id": id}).Info("Polling job")

		status, err := fetch(ctx, id)
		if err != nil {
			p.metrics.ObservePoll(StrategySingle, "error", p.clock.Now().Sub(start))
			return types.WorkflowStatus{}, err
		}
		if !status.HasStatus() || !status.HasProgress() {
			p.metrics.ObservePoll(StrategySingle, "error", p.clock.Now().Sub(start))
			return types.WorkflowStatus{}, irperr.API(
				"Missing 'status' or 'progress' in job response for %s ID %d", label, id)
		}
		p.log.WithFields(logrus.Fields{
			"status":   status.Status,
			"progress": status.ProgressString(),
		}).Info("Job status")

		if types.IsCompleted(status.Status) {
			p.metrics.ObservePoll(StrategySingle, "completed", p.clock.Now().Sub(start))
			return status, nil
		}

		if p.clock.Now().Sub(start) > opts.Timeout {
			p.metrics.ObservePoll(StrategySingle, "timeout", p.clock.Now().Sub(start))
			return types.WorkflowStatus{}, irperr.New(opts.timeoutKind(irperr.KindJobTimeout),
				"%s ID %d did not complete within %s. Last status: %s",
				label, id, opts.Timeout, status.Status)
		}
		if err := p.clock.Sleep(ctx, opts.Interval); err != nil {
			return types.WorkflowStatus{}, err
		}
	}
}

// PollWorkflow polls a risk data workflow by ID.
func (p *Poller) PollWorkflow(ctx context.Context, workflowID int64, opts Options) (types.WorkflowStatus, error) {
	if opts.Label == "" {
		opts.Label = "Risk data workflow"
	}
	return p.PollJob(ctx, workflowID, p.api.GetWorkflow, opts)
}

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/config"
	"github.com/rossigee/irp-integration/internal/edm"
	"github.com/rossigee/irp-integration/internal/jobs"
	"github.com/rossigee/irp-integration/internal/metrics"
	"github.com/rossigee/irp-integration/internal/mri"
	"github.com/rossigee/irp-integration/internal/objectstore"
	"github.com/rossigee/irp-integration/internal/portfolio"
	"github.com/rossigee/irp-integration/internal/sqlscript"
	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/internal/workflow"
)

// app holds every component, wired once per invocation.
type app struct {
	cfg        *config.Config
	log        *logrus.Entry
	metrics    *metrics.Metrics
	client     *client.Client
	poller     *workflow.Poller
	edms       *edm.Manager
	portfolios *portfolio.Manager
	imports    *mri.Manager
	store      *storage.Store
	tracker    *jobs.Tracker
}

func newApp(cfg *config.Config) (*app, error) {
	log := logrus.NewEntry(logrus.StandardLogger())
	m := metrics.New()

	api, err := client.New(client.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		ResourceGroupID: cfg.ResourceGroupID,
		Timeout:         cfg.RequestTimeout,
		Retry:           cfg.RetryPolicy(),
	}, client.WithLogger(log.WithField("component", "client")), client.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	single, batch := cfg.PollDefaults()
	poller := workflow.New(api,
		workflow.WithDefaults(single, batch),
		workflow.WithLogger(log.WithField("component", "poller")),
		workflow.WithMetrics(m),
	)

	uploader, err := objectstore.New(cfg.Storage.Backend, cfg.Storage.Endpoint,
		objectstore.WithLogger(log.WithField("component", "objectstore")))
	if err != nil {
		return nil, err
	}

	scripts := sqlscript.NewRunner(cfg.SQL.ScriptsDir, cfg.SQL.Connections, log.WithField("component", "sqlscript"))
	edms := edm.NewManager(api, poller, log.WithField("component", "edm"))
	portfolios := portfolio.NewManager(api, edms, poller, scripts, portfolio.WithLogger(log.WithField("component", "portfolio")))
	imports := mri.NewManager(api, edms, portfolios, poller, uploader,
		mri.WithLogger(log.WithField("component", "mri")),
		mri.WithDirectories(cfg.Files.DataDir, cfg.Files.MappingDir),
	)

	a := &app{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		client:     api,
		poller:     poller,
		edms:       edms,
		portfolios: portfolios,
		imports:    imports,
	}

	if cfg.Journal.Path != "" {
		store, err := storage.NewStore(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.store = store
		a.tracker = jobs.NewTracker(store,
			jobs.WithLogger(log.WithField("component", "journal")),
			jobs.WithFetcher(storage.KindWorkflow, api.GetWorkflow),
			jobs.WithFetcher(storage.KindImport, imports.GetImportJob),
			jobs.WithFetcher(storage.KindGeohaz, portfolios.GetGeohazJob),
		)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close journal")
	}
}

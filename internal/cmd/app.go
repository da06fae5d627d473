package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/taskflow/internal/apply"
	"github.com/felixgeelhaar/taskflow/internal/approval"
	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/config"
	"github.com/felixgeelhaar/taskflow/internal/depgraph"
	"github.com/felixgeelhaar/taskflow/internal/hooks"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/metrics"
	"github.com/felixgeelhaar/taskflow/internal/patch"
	"github.com/felixgeelhaar/taskflow/internal/pipeline"
	"github.com/felixgeelhaar/taskflow/internal/provider"
	"github.com/felixgeelhaar/taskflow/internal/tools"
	"github.com/felixgeelhaar/taskflow/internal/validate"
)

// app holds the collaborators built from the configuration for one command.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	provider provider.Provider
	tools    *tools.MemoryRegistry
	store    *checkpoint.FileStore
	journal  *patch.Journal
	hooks    *hooks.Registry
	builder  *depgraph.Builder
}

func newApp(cfg *config.Config) (*app, error) {
	logger := newLogger(cfg.Log)

	registry, m := metrics.NewRegistry()

	hookRegistry := hooks.NewRegistry(logger)
	if err := hookRegistry.RegisterConfigs(cfg.Hooks); err != nil {
		return nil, err
	}

	builder := depgraph.NewBuilder(cfg.Graph.CacheSize)
	builder.SetMetrics(m)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		gatherer: registry,
		metrics:  m,
		provider: provider.None{},
		tools:    tools.NewBuiltinRegistry(tools.BuiltinOptions{ShellTimeout: cfg.Tools.ShellTimeout}),
		store:    checkpoint.NewFileStore(cfg.Workdir, cfg.StatePath("checkpoints")),
		journal:  patch.NewJournal(cfg.StatePath("journal")),
		hooks:    hookRegistry,
		builder:  builder,
	}

	if cfg.Provider.Command != "" {
		p, err := provider.NewExecutableProvider(cfg.Provider.Command, cfg.Provider.Args, cfg.Provider.Timeout)
		if err != nil {
			// Agents degrade without a provider; the planner reports it.
			logger.WithError(err).Warn("completion provider unavailable")
		} else {
			a.provider = p
		}
	}
	return a, nil
}

func newLogger(c config.LogConfig) *log.Logger {
	lc := log.DefaultConfig()
	if c.File != "" {
		lc = log.FileConfig(c.File, log.ParseLevel(c.Level))
	}
	lc.Level = log.ParseLevel(c.Level)
	lc.Format = log.ParseFormat(c.Format)
	return log.New(lc)
}

func (a *app) orchestrator(gate approval.Gate) *pipeline.Orchestrator {
	o := pipeline.NewOrchestrator(a.provider, a.tools, pipeline.Config{
		Workdir:     a.cfg.Workdir,
		HistorySize: a.cfg.Pipeline.HistorySize,
	})
	o.SetLogger(a.logger)
	o.SetCheckpointStore(a.store)
	o.SetApprovalGate(gate)
	o.SetMetrics(a.metrics)
	o.SetHookRegistry(a.hooks)
	return o
}

func (a *app) engine() *apply.Engine {
	e := apply.NewEngine(a.cfg.Workdir, a.store, a.builder)
	e.SetLogger(a.logger)
	e.SetJournal(a.journal)
	e.SetMetrics(a.metrics)
	e.SetHookRegistry(a.hooks)
	return e
}

func (a *app) validator() *validate.Validator {
	return validate.New(a.cfg.Workdir, a.builder)
}

// close flushes metrics to the configured textfile and closes the log.
func (a *app) close() error {
	var firstErr error
	if a.cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.File, a.gatherer); err != nil {
			firstErr = fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if err := a.logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// withApp builds the app for the loaded configuration, runs fn and closes it.
func withApp(fn func(a *app) error) (err error) {
	a, err := newApp(loaded)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

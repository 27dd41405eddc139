package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"medicopro/internal/adapters/export"
	"medicopro/internal/blob"
	"medicopro/internal/config"
	"medicopro/internal/core"
	"medicopro/internal/platform/logging"
)

const expvarName = "medicopro_operations"

// app holds the wired registry shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	backend  core.Backend
	svc      *core.Service
	exporter *export.Exporter
}

type appOptions struct {
	logOut   io.Writer
	registry prometheus.Registerer
	expvar   bool
}

func newApp(ctx context.Context, opts *rootOptions, aopts appOptions) (*app, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, aopts.logOut)

	backend, err := core.OpenBackend(ctx, cfg.StorageConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	svcOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}
	var recorders core.MultiMetricsRecorder
	if aopts.registry != nil {
		prom, err := core.NewPrometheusMetricsRecorder(aopts.registry)
		if err != nil {
			_ = core.CloseBackend(backend)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		recorders = append(recorders, prom)
	}
	if aopts.expvar {
		recorders = append(recorders, core.NewExpvarMetricsRecorder(expvarName))
	}
	if len(recorders) > 0 {
		svcOpts = append(svcOpts, core.WithMetricsRecorder(recorders))
	}
	if cfg.IsDevelopment() {
		svcOpts = append(svcOpts, core.WithTracer(core.NewLogTracer(logger)))
	}
	svc := core.NewService(core.NewStore(backend, core.NewDefaultRulesEngine()), svcOpts...)

	exportOpts := []export.Option{
		export.WithLogger(logger),
		export.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}
	if cfg.ExportBlob {
		objects, err := blob.Open(ctx, cfg.BlobConfig())
		if err != nil {
			_ = core.CloseBackend(backend)
			return nil, fmt.Errorf("open export blob store: %w", err)
		}
		exportOpts = append(exportOpts, export.WithObjectStore(objects))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		svc:      svc,
		exporter: export.New(svc, exportOpts...),
	}, nil
}

func (a *app) Close() {
	if err := core.CloseBackend(a.backend); err != nil {
		a.logger.Warn().Err(err).Msg("close storage")
	}
}

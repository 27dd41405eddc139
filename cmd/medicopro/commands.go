package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"medicopro/internal/adapters/export"
	"medicopro/internal/adapters/httpapi"
	"medicopro/internal/core"
	"medicopro/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			a, err := newApp(ctx, opts, appOptions{logOut: os.Stdout, registry: reg, expvar: true})
			if err != nil {
				return err
			}
			defer a.Close()

			h := httpapi.NewHandler(a.svc, a.exporter,
				httpapi.WithDashboardDefaults(a.cfg.DashboardOptions()),
				httpapi.WithHandlerLogger(a.logger))
			e := httpapi.NewServer(h, httpapi.ServerConfig{Logger: a.logger, Gatherer: reg})
			e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + a.cfg.Port
				a.logger.Info().Str("addr", addr).Str("storage", a.cfg.StorageDriver).Msg("starting server")
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
			select {
			case err := <-errCh:
				return fmt.Errorf("server: %w", err)
			case <-quit:
			}

			a.logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			a.logger.Info().Msg("server stopped")
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out        string
		windowDays int
		store      bool
		by         string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a CSV backup of the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if windowDays < 0 {
				return fmt.Errorf("--window-days must not be negative")
			}
			a, err := newApp(cmd.Context(), opts, appOptions{logOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			artifact, data, err := a.exporter.Export(cmd.Context(), export.Request{
				WindowDays:  windowDays,
				RequestedBy: by,
				Store:       store,
			})
			if err != nil {
				return err
			}
			if store {
				return writeJSON(cmd, artifact)
			}
			if out == "" {
				out = artifact.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", artifact.Records, out)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file, - for stdout (default patients_backup_<date>.csv)")
	cmd.Flags().IntVar(&windowDays, "window-days", 0, "only export records registered within this many days")
	cmd.Flags().BoolVar(&store, "store", false, "upload to the export blob store and print the artifact")
	cmd.Flags().StringVar(&by, "requested-by", os.Getenv("USER"), "name recorded in the audit log")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		windowDays int
		top        int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard summary as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{logOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			dopts := a.cfg.DashboardOptions()
			if windowDays > 0 {
				dopts.WindowDays = windowDays
			}
			if top > 0 {
				dopts.Top = top
			}
			d, err := a.svc.Dashboard(cmd.Context(), dopts)
			if err != nil && !domain.IsDegraded(err) {
				return err
			}
			return writeJSON(cmd, d)
		},
	}
	cmd.Flags().IntVar(&windowDays, "window-days", 0, "recent window (default from config)")
	cmd.Flags().IntVar(&top, "top", 0, "number of pathologies to list (default from config)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		to   string
		dest string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the registry in the current column layout, optionally into another backend",
		Long: "migrate loads every record, filling in columns missing from older tables, and " +
			"persists the collection again. With --to the records are copied into another storage driver.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, appOptions{logOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.svc.Load(ctx)
			if err != nil {
				return fmt.Errorf("load patients: %w", err)
			}

			target := a.backend
			if to != "" {
				scfg := a.cfg.StorageConfig(a.logger)
				scfg.Driver = core.StorageDriver(to)
				if dest != "" {
					scfg.CSVPath, scfg.SQLitePath, scfg.PostgresDSN, scfg.BlobKey = dest, dest, dest, dest
				}
				target, err = core.OpenBackend(ctx, scfg)
				if err != nil {
					return fmt.Errorf("open %s storage: %w", to, err)
				}
				defer func() { _ = core.CloseBackend(target) }()
			}
			if err := target.Persist(ctx, records); err != nil {
				return fmt.Errorf("persist patients: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %d records to %s\n", len(records), target.Driver())
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination storage driver (csv, sqlite, postgres, blob, memory)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination path, DSN or blob key for --to")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

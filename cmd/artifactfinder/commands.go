package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/mcp"
	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/searcher"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

func newServeCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Metrics.Enabled = metricsAddr != ""
				a.cfg.Metrics.Addr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var m *metrics.Metrics
			if a.cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				m = metrics.NewMetrics(reg)

				shutdown := serveMetrics(a.cfg.Metrics.Addr, reg, a.logger)
				defer shutdown()
			}

			f, err := a.openFinder(m)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			mcp.ServerVersion = version
			a.logger.Info("artifactfinder starting",
				zap.String("version", version),
				zap.String("build_mode", storage.BuildMode),
				zap.String("driver", storage.DriverName),
				zap.String("db", a.cfg.Storage.Path),
			)

			err = mcp.NewServer(f, a.logger.Named("mcp")).Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// serveMetrics exposes reg on addr/metrics and returns a shutdown function
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		classes   bool
		global    bool
		extension bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed classes and functions",
		Long: `Search indexed classes and functions by name or name prefix.

Nested classes can be written with '.' or '$', e.g. "Outer.Inner".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.openFinder(nil)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			records, err := f.Search(cmd.Context(), searcher.SearchParams{
				Query:                   args[0],
				IncludeClasses:          classes,
				IncludeGlobalMethods:    global,
				IncludeExtensionMethods: extension,
				Limit:                   limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tPACKAGE\tARTIFACT")
			for _, r := range records {
				name := r.QualifiedName()
				if r.Receiver != nil {
					name = r.Receiver.Name + "." + name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Kind, name, r.Pkg, r.Artifact)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&classes, "classes", true, "include classes")
	cmd.Flags().BoolVar(&global, "global", true, "include global functions")
	cmd.Flags().BoolVar(&extension, "extension", true, "include extension functions")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from config)")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var artifactory string

	cmd := &cobra.Command{
		Use:   "add <group> <artifact> <version>",
		Short: "Queue an artifact for indexing",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := types.ParseVersion(args[2])
			if !ok {
				return fmt.Errorf("%w: %q", types.ErrInvalidVersion, args[2])
			}
			repo, ok := types.ParseArtifactory(artifactory)
			if !ok {
				return fmt.Errorf("%w: %q", types.ErrInvalidArtifactory, artifactory)
			}

			f, err := a.openFinder(nil)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			added, err := f.AddPendingArtifact(cmd.Context(), args[0], args[1], v, repo)
			if err != nil {
				return err
			}

			coordinate := types.Coordinate{GroupID: args[0], ArtifactID: args[1], Version: v, Artifactory: repo}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", coordinate, repo)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already pending or indexed\n", coordinate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactory, "artifactory", string(types.ArtifactoryMaven), "repository kind: MAVEN or GOOGLE")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.openFinder(nil)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			status, err := f.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Database:\t%s\n", status.StorageLocation)
			fmt.Fprintf(w, "Schema version:\t%d\n", status.SchemaVersion)
			fmt.Fprintf(w, "Size:\t%s\n", humanize.Bytes(uint64(status.SizeBytes)))
			fmt.Fprintf(w, "Artifacts:\t%s\n", humanize.Comma(int64(status.Artifacts)))
			fmt.Fprintf(w, "Classes:\t%s (%s lookups)\n", humanize.Comma(int64(status.Classes)), humanize.Comma(int64(status.ClassLookups)))
			fmt.Fprintf(w, "Methods:\t%s (%s lookups)\n", humanize.Comma(int64(status.Methods)), humanize.Comma(int64(status.MethodLookups)))
			fmt.Fprintf(w, "Pending:\t%s of %s remaining\n", humanize.Comma(int64(status.PendingRemaining())), humanize.Comma(int64(status.PendingTotal)))
			return w.Flush()
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Checkpoint the write-ahead log into the database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.openFinder(nil)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if err := f.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Index synced.")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ArtifactFinder\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

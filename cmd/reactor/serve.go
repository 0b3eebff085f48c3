package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr      string
		sinks     string
		restore   string
		saveOnEnd string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the state over HTTP and websockets",
		Long: `Load the state file and serve it.

Endpoints:
  GET  /state, /state/{key}     read values
  PUT  /state/{key}             write a value
  POST /commit/{mutation}       run a mutation (set, increment)
  GET  /watch?keys=a,b          websocket stream of changes
  GET  /metrics, /healthz

Examples:
  reactor serve
  reactor serve --addr :9000 --telemetry slog,prometheus
  reactor serve --restore nightly --save-on-exit nightly`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, flags, serveOptions{
				addr:      addr,
				telemetry: strings.Split(sinks, ","),
				restore:   restore,
				saveOnEnd: saveOnEnd,
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from reactor.json)")
	cmd.Flags().StringVar(&sinks, "telemetry", "prometheus", "Comma-separated telemetry sinks (noop, slog, prometheus, trace)")
	cmd.Flags().StringVar(&restore, "restore", "", "Restore the named snapshot before serving")
	cmd.Flags().StringVar(&saveOnEnd, "save-on-exit", "", "Save a snapshot with this name on shutdown")

	return cmd
}

type serveOptions struct {
	addr      string
	telemetry []string
	restore   string
	saveOnEnd string
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *globalFlags, opts serveOptions) error {
	cfg, err := loadConfig(flags, os.Getenv)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs, err := telemetry(logger, registry, opts.telemetry)
	if err != nil {
		return err
	}

	st, err := newStore(cfg, logger, obs)
	if err != nil {
		return err
	}

	persister := newPersister(cfg, os.Getenv)
	if opts.restore != "" {
		if err := st.Load(ctx, persister, opts.restore); err != nil {
			return snapshotError(opts.restore, err)
		}
		logger.Info("snapshot restored", "name", opts.restore)
	}

	srv := server.New(st, serverConfig(cfg, registry, logger))

	info(cmd.OutOrStdout(), "state:  %s (%d keys)", cfg.StatePath(), st.State().Len())
	info(cmd.OutOrStdout(), "listen: %s", cfg.Server.Addr)

	serveErr := srv.ListenAndServe(ctx)

	if opts.saveOnEnd != "" {
		// The serve context is done by now.
		if err := st.Save(context.WithoutCancel(ctx), persister, opts.saveOnEnd); err != nil {
			return snapshotError(opts.saveOnEnd, err)
		}
		logger.Info("snapshot saved", "name", opts.saveOnEnd)
	}

	if serveErr != nil {
		return errors.New("R400").WithDetail(serveErr.Error()).Wrap(serveErr)
	}
	return nil
}

// serverConfig maps the file settings onto server.Config. Zero values keep
// the server defaults.
func serverConfig(cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) server.Config {
	sc := cfg.Server
	return server.Config{
		Addr:              sc.Addr,
		ReadHeaderTimeout: sc.ReadHeaderTimeout.Std(),
		WriteTimeout:      sc.WriteTimeout.Std(),
		IdleTimeout:       sc.IdleTimeout.Std(),
		ShutdownTimeout:   sc.ShutdownTimeout.Std(),
		PingInterval:      sc.PingInterval.Std(),
		SendBuffer:        sc.SendBuffer,
		MaxBodySize:       sc.MaxBodySize,
		MetricsPath:       sc.MetricsPath,
		Registry:          registry,
		Logger:            logger,
	}
}

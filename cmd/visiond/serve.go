package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"visiond/internal/common/fsutil"
	"visiond/internal/config"
	"visiond/internal/httpapi"
	"visiond/internal/orchestrator"
	"visiond/internal/registry"
	"visiond/internal/router"
)

// adminDisabled as admin_addr mounts the admin routes on the gateway listener.
const adminDisabled = "none"

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	addr        string
	adminAddr   string
	budgetGB    float64
	marginGB    float64
	logFormat   string
	corsOrigins string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway, admin API and worker reaper",
		Example: "  visiond serve --config visiond.yaml\n" +
			"  visiond serve --budget-gb 16 --admin-addr none",
		Args: cobra.NoArgs,
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "Gateway listen address (default :8000)")
	f.StringVar(&opts.adminAddr, "admin-addr", "", "Admin listen address, or \"none\" to serve admin routes on the gateway (default 127.0.0.1:8100)")
	f.Float64Var(&opts.budgetGB, "budget-gb", 0, "Memory budget for all workers in GB")
	f.Float64Var(&opts.marginGB, "margin-gb", 0, "Part of the budget never handed to workers, in GB")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")
	f.StringVar(&opts.corsOrigins, "cors-origins", "", "Comma-separated origins; enables CORS on the gateway")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(root, func(c *config.Config) {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				c.Addr = opts.addr
			}
			if flags.Changed("admin-addr") {
				c.AdminAddr = opts.adminAddr
			}
			if flags.Changed("budget-gb") {
				c.Memory.BudgetGB = opts.budgetGB
			}
			if flags.Changed("margin-gb") {
				c.Memory.SafetyMarginGB = opts.marginGB
			}
			if flags.Changed("log-format") {
				c.LogFormat = opts.logFormat
			}
			if origins := splitCSV(opts.corsOrigins); len(origins) > 0 {
				c.Gateway.CORS.Enabled = true
				c.Gateway.CORS.AllowedOrigins = origins
			}
		})
		if err != nil {
			return err
		}
		logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	}
	return cmd
}

// serve runs until ctx ends, then drains the listeners and stops every worker.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	specs, err := registry.Build(cfg)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if fsutil.IsLocalPath(s.ModelPath) && !fsutil.PathExists(s.ModelPath) {
			logger.Warn().Str("alias", s.Alias).Str("model_path", s.ModelPath).Msg("model path does not exist; worker will fail to start")
		}
	}
	logDir, err := fsutil.ExpandHome(cfg.Workers.LogDir)
	if err != nil {
		return err
	}
	stateDir, err := fsutil.ExpandHome(cfg.Workers.StateDir)
	if err != nil {
		return err
	}
	for _, dir := range []string{logDir, stateDir} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return err
		}
	}

	w := cfg.Workers
	orch, err := orchestrator.New(orchestrator.Config{
		Specs:              specs,
		BudgetMB:           cfg.BudgetMB(),
		MarginMB:           cfg.MarginMB(),
		IdleTimeout:        config.Seconds(w.IdleTimeoutSeconds),
		ReaperPeriod:       config.Seconds(w.ReaperPeriodSeconds),
		GracePeriod:        config.Seconds(w.GracePeriodSeconds),
		MaxConcurrent:      w.MaxConcurrent,
		MaxQueueDepth:      w.MaxQueueDepth,
		MaxWait:            config.Seconds(w.MaxWaitSeconds),
		MaxRequests:        w.MaxRequests,
		UnhealthyThreshold: w.UnhealthyThreshold,
		StateDir:           stateDir,
		Launcher:           orchestrator.NewExecLauncher(w.Host, w.Python, logDir, &logger),
		Prober:             orchestrator.NewProber(nil, config.Seconds(w.HealthTimeoutSeconds)),
		Logger:             &logger,
	})
	if err != nil {
		return err
	}
	if n, err := orch.Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("reconcile failed")
	} else if n > 0 {
		logger.Info().Int("stopped", n).Msg("stopped workers left by a previous run")
	}

	rt := router.New(orch,
		router.WithTimeout(config.Seconds(w.RequestTimeoutSeconds)),
		router.WithLogger(logger),
	)
	configureHTTP(ctx, cfg, logger)
	backend := httpapi.Backend{Orchestrator: orch, Router: rt}

	servers := map[string]*http.Server{}
	if cfg.AdminAddr == adminDisabled {
		servers["gateway"] = newHTTPServer(cfg.Addr, httpapi.NewMux(backend))
	} else {
		servers["gateway"] = newHTTPServer(cfg.Addr, httpapi.NewGatewayMux(backend))
		servers["admin"] = newHTTPServer(cfg.AdminAddr, httpapi.NewAdminMux(backend))
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range servers {
		g.Go(func() error {
			logger.Info().Str("listener", name).Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s listener: %w", name, err)
			}
			return nil
		})
	}
	g.Go(func() error { return orch.Reaper().Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for name, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("%s shutdown: %w", name, err))
			}
		}
		if err := orch.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// configureHTTP pushes gateway settings into the httpapi package.
func configureHTTP(ctx context.Context, cfg config.Config, logger zerolog.Logger) {
	gw := cfg.Gateway
	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetBaseContext(ctx)
	httpapi.SetAPIKey(cfg.APIKey)
	httpapi.SetMaxBodyBytes(int64(gw.MaxBodyMB) << 20)
	httpapi.SetEndpointTimeouts(
		config.Seconds(gw.ChatTimeoutSeconds),
		config.Seconds(gw.VisionTimeoutSeconds),
		config.Seconds(gw.ImageTimeoutSeconds),
	)
	httpapi.SetCORSOptions(gw.CORS.Enabled, gw.CORS.AllowedOrigins, gw.CORS.AllowedMethods, gw.CORS.AllowedHeaders)
	httpapi.SetCORSCredentials(gw.CORS.AllowCredentials, gw.CORS.MaxAgeSeconds)
	httpapi.SetGatewayRoutes(httpapi.GatewayRoutes{
		ChatFallback: gw.ChatFallbackAlias,
		Image:        gw.ImageAlias,
		VisionFast:   gw.VisionFastAlias,
		VisionBest:   gw.VisionBestAlias,
	})
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/adbridge/pkg/analytics"
	"github.com/luxfi/adbridge/pkg/api"
	"github.com/luxfi/adbridge/pkg/bridge"
	"github.com/luxfi/adbridge/pkg/config"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
	"github.com/luxfi/adbridge/pkg/native/simulated"
	"github.com/luxfi/adbridge/pkg/router"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	port       = flag.Int("port", 0, "API server port (overrides listen_addr)")
	adminPort  = flag.Int("admin-port", 0, "Admin server port (overrides admin_addr)")
	env        = flag.String("env", "", "Environment (development/production)")
	version    = flag.Bool("version", false, "Show version information")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("adbridge %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", *port)
	}
	if *adminPort != 0 {
		cfg.AdminAddr = fmt.Sprintf(":%d", *adminPort)
	}
	if *env != "" {
		cfg.Environment = *env
	}

	level := zap.NewAtomicLevelAt(log.ParseLevel(cfg.LogLevel))
	logger := log.NewAtomic("adbridge", level)
	defer logger.Sync()

	if err := run(cfg, logger, &level); err != nil {
		logger.Fatal("adbridge failed", log.Error(err))
	}
}

func run(cfg config.Config, logger log.Logger, level *zap.AtomicLevel) error {
	metrics, err := metric.NewMetrics()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	simCfg := simulated.DefaultConfig()
	simCfg.Latency = cfg.Simulated.Latency
	for i := range simCfg.Demand {
		simCfg.Demand[i].FillRate = cfg.Simulated.FillRate
	}
	sdk := simulated.New(simCfg, logger.With(log.String("component", "sdk")))
	defer sdk.Close()

	module := bridge.New(sdk, logger.With(log.String("component", "bridge")), bridge.Options{
		Dispatcher: router.DispatcherConfig{
			QueueSize:        cfg.Events.Buffer,
			SubscriberBuffer: cfg.Events.SubscriberBuffer,
		},
		Metrics: metrics,
		Level:   level,
	})
	defer module.Close()
	module.SetEnvironment(cfg.SDK.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := analytics.NewTracker(module.Placement, logger.With(log.String("component", "analytics")))
	sub, err := module.Subscribe(router.Filter{})
	if err != nil {
		return fmt.Errorf("subscribe analytics: %w", err)
	}
	go tracker.Run(ctx, sub)

	if cfg.SDK.AppKey != "" {
		if err := module.Initialize(ctx, bridge.InitConfig{AppKey: cfg.SDK.AppKey}); err != nil {
			return err
		}
	}

	server := api.NewServer(module, tracker, metrics, logger.With(log.String("component", "api")), api.Config{
		Environment: cfg.Environment,
		CORSOrigins: cfg.API.CORSOrigins,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
	})

	stop := make(chan struct{})
	defer close(stop)
	server.Limiter().StartCleanup(time.Minute, stop)

	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           server.AdminRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		logger.Info("server listening", log.String("server", name), log.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go serve("api", apiSrv)
	if cfg.AdminAddr != "" {
		go serve("admin", adminSrv)
	}

	logger.Info("adbridge started",
		log.String("version", Version),
		log.String("environment", cfg.Environment),
		log.String("sdk", sdk.Version()),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", log.String("signal", sig.String()))
	case err = <-errCh:
		logger.Error("server failed", log.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Close the module first so event streams end and their handlers return
	module.Close()
	if serr := apiSrv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("api server forced to shutdown", log.Error(serr))
	}
	if cfg.AdminAddr != "" {
		if serr := adminSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("admin server forced to shutdown", log.Error(serr))
		}
	}

	logger.Info("adbridge stopped")
	return err
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulzo/reliability-forge/cmd"
	"github.com/nulzo/reliability-forge/internal/app"
	"github.com/nulzo/reliability-forge/internal/cli"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/platform/logger"
	"github.com/nulzo/reliability-forge/internal/platform/otel"
	"github.com/nulzo/reliability-forge/internal/server"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to config.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. config
	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed to load config: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}

	// 2. logging and tracing
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.File = cfg.Log.File
	logger.Initialize(logCfg)
	log := logger.Get()
	defer logger.Sync()

	go cmd.CheckForUpdates(ctx, log)

	shutdownTracer, err := otel.InitTracer(cfg.Tracing.Enabled, otel.ServiceName, log, nil)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	// 3. components
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()
	a.Start(ctx)

	for _, m := range a.Router.Models() {
		log.Info(cli.ModelLine(m.Name, string(m.Provider), m.Name == a.Router.DefaultModel()))
	}
	if a.Router.DefaultModel() == "" {
		log.Warn(fmt.Sprintf("%s DEFAULT_MODEL is not set; requests must name a model", cli.WarningSign()))
	}

	// 4. http
	srv := server.New(cfg, log, server.Deps{
		Gateway:   a.Router,
		Agent:     a.Agent,
		Patterns:  a.Resolver,
		Analytics: a.Analytics,
		Metrics:   a.Metrics,
		Version:   cmd.AppVersion,
	})

	if err := srv.Run(ctx); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
}

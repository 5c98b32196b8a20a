package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/nodeflow/config"
	"github.com/BaSui01/nodeflow/internal/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	demoEvery := fs.Duration("demo-interval", 0, "Run the demo flow at this interval; 0 disables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting NodeFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	handler := server.Chain(a.handler(Version), a.middleware(gctx)...)
	mgr := server.NewManager(handler, server.ConfigFrom(cfg.Server), logger)
	g.Go(func() error { return mgr.Run(gctx) })

	if *configPath != "" {
		watcher, err := config.NewLoader().
			WithConfigPath(*configPath).
			Watch(gctx, a.reload, config.WithWatcherLogger(logger))
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	if *demoEvery > 0 {
		g.Go(func() error { return a.runDemoLoop(gctx, *demoEvery) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("NodeFlow stopped")
	return nil
}

func runDemo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	input := fs.Float64("input", 3, "Value squared by the flow")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	lg, err := a.newSquareFlow()
	if err != nil {
		return err
	}
	out, err := runSquare(ctx, lg, *input)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s(%g) = %g\n", demoGraphName, *input, out)
	return nil
}

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/nodeflow/internal/migration"
)

// runMigrate handles `nodeflow migrate [flags] <subcommand> [arg]`. The
// database comes from the configuration unless --db-type and --db-url
// override it.
func runMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	dbURL := fs.String("db-url", "", "Database connection URL (default: from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	var m *migration.DefaultMigrator
	if *dbType != "" || *dbURL != "" {
		driver := *dbType
		if driver == "" {
			driver = cfg.Database.Driver
		}
		t, err := migration.ParseDatabaseType(driver)
		if err != nil {
			return err
		}
		url := *dbURL
		if url == "" {
			url = migration.DatabaseURL(t, cfg.Database)
		}
		m, err = migration.NewMigrator(&migration.Config{
			DatabaseType: t,
			DatabaseURL:  url,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
	} else if m, err = migration.NewMigratorFromConfig(cfg.Database, logger); err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := migration.NewCLI(m)
	cli.SetOutput(stdout)
	return cli.Run(ctx, fs.Args())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	_ "github.com/lib/pq"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print pending migration SQL without executing it")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall migration timeout")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// auto_migrate is ignored here, the migrator below is the only writer
	cfg.Postgres.AutoMigrate = false

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info("Running database migrations...")
	pending, err := postgres.NewMigrator(db, logger).Up(ctx, *dryRun)
	if err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}

	if *dryRun {
		logger.Infow("Dry run mode - printing pending migrations without executing", "pending", len(pending))
		for _, mig := range pending {
			fmt.Printf("-- %s\n%s\n", mig.Version, mig.SQL)
		}
		return
	}

	logger.Infow("Migration completed successfully", "applied", len(pending))
}

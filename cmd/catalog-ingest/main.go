// Command catalog-ingest loads gzip JSON-lines catalog feeds into Postgres.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/ingest"
	"github.com/xenking/stitchbag/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		migrate     bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&migrate, "migrate", true, "apply schema migrations before loading")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if flag.NArg() == 0 {
		lg.Fatal("No feed files given", zap.String("usage", "catalog-ingest [flags] feed.jsonl.gz..."))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, databaseURL, migrate, flag.Args()); err != nil {
		lg.Error("Catalog ingest failed", zap.Error(err))
		cancel()
		_ = lg.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, migrate bool, files []string) error {
	lg := zctx.From(ctx)
	if migrate {
		if err := postgres.Migrate(ctx, databaseURL); err != nil {
			return errors.Wrap(err, "run migrations")
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	stats, err := ingest.Files(ctx, postgres.NewCatalogRepository(pool), files)
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.Int("total", stats.Total())}
	for kind, n := range stats {
		fields = append(fields, zap.Int(string(kind), n))
	}
	lg.Info("Catalog ingest completed", fields...)
	return nil
}

// Command coupon-import loads coupon rules from gzip files of
// "CODE,kind,value[,description]" lines into the coupons table.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"

	"github.com/xenking/wello-store/internal/repository"
)

type config struct {
	DatabaseURL string   `env:"DATABASE_URL"`
	Files       []string `env:"WELLO_COUPON_FILES" envSeparator:","`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("parse env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()
	if args := flag.Args(); len(args) > 0 {
		cfg.Files = args
	}

	if cfg.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if len(cfg.Files) == 0 {
		slog.Error("no input files: pass them as arguments or set WELLO_COUPON_FILES")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, cfg config) error {
	results, err := parseFiles(ctx, cfg.Files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}
	rules, dups := dedupe(results)
	slog.Info("rules parsed", slog.Int("unique", len(rules)), slog.Int("duplicates", dups))

	if len(rules) == 0 {
		slog.Info("no rules to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := importRules(ctx, repository.NewCouponRepository(pool), rules)
	if err != nil {
		return errors.Wrap(err, "import rules")
	}
	slog.Info("import finished",
		slog.Int("inserted", stats.inserted),
		slog.Int("existing", stats.existing),
		slog.Int("exact_checks", stats.probes),
	)
	return nil
}

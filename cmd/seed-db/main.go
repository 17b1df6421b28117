package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"

	"github.com/xenking/wello-store/db"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/product"
	"github.com/xenking/wello-store/internal/repository"
)

type config struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	ProductsFile string `env:"WELLO_SEED_PRODUCTS"`
	SkipCoupons  bool   `env:"WELLO_SEED_SKIP_COUPONS"`
}

type productJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("parse env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.ProductsFile, "products-file", cfg.ProductsFile, "products JSON file; the embedded catalog when empty")
	flag.BoolVar(&cfg.SkipCoupons, "skip-coupons", cfg.SkipCoupons, "do not seed the built-in coupon rules")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg config) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := loadProducts(cfg.ProductsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	if err := seedProducts(ctx, repository.NewProductRepository(pool), products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if cfg.SkipCoupons {
		return nil
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func loadProducts(path string) ([]product.Product, error) {
	data := db.Products
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}

	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" || p.Name == "" || p.Price < 0 {
			return nil, errors.Errorf("invalid product %q", p.ID)
		}
		products = append(products, product.Product(p))
	}
	return products, nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, products []product.Product) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding built-in coupons")

	for _, r := range coupon.DefaultRules() {
		if err := repo.Upsert(ctx, r); err != nil {
			return err
		}

		slog.Info("upserted coupon", slog.String("code", r.Code), slog.String("kind", string(r.Kind)))
	}

	return nil
}

package app

import (
	"context"
	"crypto/rand"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/product"
	"github.com/xenking/wello-store/internal/domain/session"
	"github.com/xenking/wello-store/internal/repository"
)

// stores are the persistence backends selected by configuration. pool is
// nil with memory storage.
type stores struct {
	pool      *pgxpool.Pool
	users     ledger.Store
	products  product.Repository
	coupons   coupon.Table
	snapshots session.Snapshots
	pepper    []byte
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	st := &stores{pepper: []byte(cfg.SessionPepper)}

	switch cfg.Storage {
	case StorageMemory:
		lg.Warn("Using in-memory storage, state is lost on restart")
		st.users = ledger.NewMemoryStore()
		st.products = product.NewStaticCatalog(product.DefaultProducts()...)
		st.snapshots = session.NewMemorySnapshots()
		if len(st.pepper) == 0 {
			st.pepper = make([]byte, 32)
			if _, err := rand.Read(st.pepper); err != nil {
				return nil, errors.Wrap(err, "generate session pepper")
			}
		}
	default:
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := repository.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		st.pool = pool
		st.users = repository.NewUserStore(pool)
		st.products = repository.NewProductRepository(pool)
		st.snapshots = repository.NewSessionRepository(pool)
	}

	if cfg.Coupons.Source == CouponsPostgres {
		st.coupons = repository.NewCouponRepository(st.pool)
		return st, nil
	}
	table, err := coupon.NewStaticTable(coupon.DefaultRules()...)
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "coupon table")
	}
	st.coupons = table
	return st, nil
}

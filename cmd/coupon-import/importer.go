package main

import (
	"context"
	"log/slog"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1000
)

// couponStore is the subset of *repository.CouponRepository the import uses.
type couponStore interface {
	Codes(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, code string) (bool, error)
	Upsert(ctx context.Context, rule coupon.Rule) error
}

type importStats struct {
	inserted int
	existing int
	// probes counts exact lookups triggered by bloom positives.
	probes int
}

// importRules inserts rules whose codes are not stored yet. Stored codes are
// loaded into a bloom filter; only filter positives are checked exactly.
func importRules(ctx context.Context, store couponStore, rules []coupon.Rule) (importStats, error) {
	var stats importStats

	codes, err := store.Codes(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "load existing codes")
	}
	filter := bloom.NewWithEstimates(uint(max(len(codes), 1)), bloomFPR)
	for _, c := range codes {
		filter.AddString(c)
	}
	slog.Info("existing codes loaded", slog.Int("count", len(codes)))

	for i, r := range rules {
		if filter.TestString(r.Code) {
			stats.probes++
			ok, err := store.Exists(ctx, r.Code)
			if err != nil {
				return stats, err
			}
			if ok {
				stats.existing++
				continue
			}
		}
		if err := store.Upsert(ctx, r); err != nil {
			return stats, err
		}
		stats.inserted++

		if (i+1)%progressEvery == 0 || i+1 == len(rules) {
			slog.Info("import progress", slog.Int("processed", i+1), slog.Int("total", len(rules)))
		}
	}
	return stats, nil
}

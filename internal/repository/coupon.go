package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, kind, value, description
		FROM coupons WHERE code = $1 AND active = TRUE`

	listCouponCodesSQL = `SELECT code FROM coupons`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`

	upsertCouponSQL = `INSERT INTO coupons (code, kind, value, description, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			description = EXCLUDED.description,
			active = TRUE`
)

var _ coupon.Table = (*CouponRepository)(nil)

// CouponRepository implements coupon.Table backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Lookup returns the active rule for code, or coupon.ErrUnknownCode.
func (r *CouponRepository) Lookup(ctx context.Context, code string) (*coupon.Rule, error) {
	code = coupon.Normalize(code)
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrUnknownCode
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

// Codes returns every stored code, active or not.
func (r *CouponRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Exists reports whether code is stored.
func (r *CouponRepository) Exists(ctx context.Context, code string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, couponExistsSQL, coupon.Normalize(code)).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "check coupon %q", code)
	}
	return ok, nil
}

// Upsert stores rule as active, normalizing its code.
func (r *CouponRepository) Upsert(ctx context.Context, rule coupon.Rule) error {
	if !rule.Kind.Valid() {
		return errors.Errorf("coupon %q: unknown kind %q", rule.Code, rule.Kind)
	}
	code := coupon.Normalize(rule.Code)
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, code, string(rule.Kind), rule.Value, rule.Description); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", code)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule coupon.Rule
		kind string
	)
	err := row.Scan(&rule.Code, &kind, &rule.Value, &rule.Description)
	rule.Kind = coupon.Kind(kind)
	return rule, err
}

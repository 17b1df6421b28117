package repository

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wello-store/internal/domain/ledger"
)

// UsersKey is the kv_store key holding the user collection.
const UsersKey = "wello_users"

const (
	loadBlobSQL = `SELECT value, version FROM kv_store WHERE key = $1`

	insertBlobSQL = `INSERT INTO kv_store (key, value, version) VALUES ($1, $2, 1)`

	updateBlobSQL = `UPDATE kv_store SET value = $2, version = version + 1, updated_at = now()
		WHERE key = $1 AND version = $3
		RETURNING version`
)

var _ ledger.Store = (*UserStore)(nil)

// UserStore implements ledger.Store as a single JSONB row in kv_store,
// written with an optimistic version check.
type UserStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewUserStore returns a UserStore using the default key.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool, key: UsersKey}
}

func (s *UserStore) Load(ctx context.Context) (ledger.Collection, int64, error) {
	var (
		blob    []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, loadBlobSQL, s.key).Scan(&blob, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Collection{}, 0, nil
		}
		return nil, 0, errors.Wrapf(err, "load %q", s.key)
	}

	var users ledger.Collection
	if err := json.Unmarshal(blob, &users); err != nil {
		return nil, 0, errors.Wrapf(err, "decode %q", s.key)
	}
	return users, version, nil
}

func (s *UserStore) Save(ctx context.Context, users ledger.Collection, expected int64) (int64, error) {
	if users == nil {
		users = ledger.Collection{}
	}
	blob, err := json.Marshal(users)
	if err != nil {
		return 0, errors.Wrapf(err, "encode %q", s.key)
	}

	if expected == 0 {
		if _, err := s.pool.Exec(ctx, insertBlobSQL, s.key, blob); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return 0, ledger.ErrVersionConflict
			}
			return 0, errors.Wrapf(err, "insert %q", s.key)
		}
		return 1, nil
	}

	var version int64
	err = s.pool.QueryRow(ctx, updateBlobSQL, s.key, blob, expected).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ledger.ErrVersionConflict
		}
		return 0, errors.Wrapf(err, "update %q", s.key)
	}
	return version, nil
}

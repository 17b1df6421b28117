package repository

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/session"
)

const (
	upsertSessionSQL = `INSERT INTO sessions (token_hash, email, snapshot)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = now()`

	getSessionSQL = `SELECT snapshot FROM sessions WHERE token_hash = $1`

	deleteSessionSQL = `DELETE FROM sessions WHERE token_hash = $1`

	deleteSessionsByEmailSQL = `DELETE FROM sessions WHERE email = $1`
)

var _ session.Snapshots = (*SessionRepository)(nil)

// SessionRepository stores the current-user snapshot of each session.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Save(ctx context.Context, tokenHash string, user ledger.User) error {
	snapshot, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if _, err := r.pool.Exec(ctx, upsertSessionSQL, tokenHash, user.Email, snapshot); err != nil {
		return errors.Wrap(err, "upsert session")
	}
	return nil
}

func (r *SessionRepository) Load(ctx context.Context, tokenHash string) (ledger.User, error) {
	var snapshot []byte
	if err := r.pool.QueryRow(ctx, getSessionSQL, tokenHash).Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.User{}, session.ErrNotFound
		}
		return ledger.User{}, errors.Wrap(err, "get session")
	}
	var u ledger.User
	if err := json.Unmarshal(snapshot, &u); err != nil {
		return ledger.User{}, errors.Wrap(err, "decode snapshot")
	}
	return u, nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.pool.Exec(ctx, deleteSessionSQL, tokenHash); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (r *SessionRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.pool.Exec(ctx, deleteSessionsByEmailSQL, email); err != nil {
		return errors.Wrap(err, "delete sessions by email")
	}
	return nil
}

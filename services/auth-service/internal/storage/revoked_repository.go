package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/timely/libs/db"
)

// RevokedTokenRepository is the server side deny list of access token ids (jti).
// Rows are only needed until the token would have expired anyway.
type RevokedTokenRepository struct {
	pool *db.Pool
}

func NewRevokedTokenRepository(pool *db.Pool) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: pool}
}

func (r *RevokedTokenRepository) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, jti, userID, expiresAt)
	return err
}

func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)
	`, jti).Scan(&revoked)
	return revoked, err
}

func (r *RevokedTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo records access tokens revoked by logout.  Rows are only needed
// until the token would have expired anyway.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Revoke marks tokenID as revoked until exp and drops rows of tokens that
// have already expired.  Revoking the same token twice is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, userID uint64, tokenID string, exp time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (token_id, user_id, expires_at) VALUES (?,?,?)",
		tokenID, userID, exp.UTC()); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < UTC_TIMESTAMP()")
	return err
}

// IsRevoked reports whether tokenID was revoked.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.DB.GetContext(ctx, &revoked,
		"SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = ?)", tokenID)
	return revoked, err
}

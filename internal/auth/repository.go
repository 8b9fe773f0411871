package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// Repository provides read access to accounts and their profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindAccount fetches an account by id.
func (r *Repository) FindAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
SELECT id, username, host, avatar_id, banner_id, created_at
FROM accounts
WHERE id = $1;`

	var account Account
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Username,
		&account.Host,
		&account.AvatarID,
		&account.BannerID,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

// Profile returns drive preferences; a missing row yields defaults.
func (r *Repository) Profile(ctx context.Context, accountID uuid.UUID) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `SELECT always_mark_nsfw FROM account_profiles WHERE account_id = $1;`

	profile := Profile{AccountID: accountID}
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&profile.AlwaysMarkNSFW)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile, nil
		}
		return Profile{}, fmt.Errorf("find profile: %w", err)
	}
	return profile, nil
}

package folder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository allows access to folder persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a folder repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a folder for the owner.
func (r *Repository) Create(ctx context.Context, f Folder) (Folder, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO drive_folders (id, owner_id, parent_id, name, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, owner_id, parent_id, name, created_at;`

	var stored Folder
	err := r.pool.QueryRow(ctx, query, f.ID, f.OwnerID, f.ParentID, f.Name, f.CreatedAt).Scan(
		&stored.ID, &stored.OwnerID, &stored.ParentID, &stored.Name, &stored.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Folder{}, ErrFolderNotFound
		}
		return Folder{}, fmt.Errorf("create folder: %w", err)
	}
	return stored, nil
}

// List returns the owner's folders directly under parentID (nil for root).
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) ([]Folder, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, parent_id, name, created_at
FROM drive_folders
WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
ORDER BY id DESC;`

	rows, err := r.pool.Query(ctx, query, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.ParentID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// Get fetches a folder ensuring ownership.
func (r *Repository) Get(ctx context.Context, ownerID, folderID uuid.UUID) (Folder, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, parent_id, name, created_at
FROM drive_folders
WHERE id = $1 AND owner_id = $2;`

	var f Folder
	err := r.pool.QueryRow(ctx, query, folderID, ownerID).Scan(&f.ID, &f.OwnerID, &f.ParentID, &f.Name, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Folder{}, ErrFolderNotFound
		}
		return Folder{}, fmt.Errorf("get folder: %w", err)
	}
	return f, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

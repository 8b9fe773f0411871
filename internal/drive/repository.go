package drive

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

const repoTimeout = 5 * time.Second

const fileColumns = `id, created_at, account_id, account_host, folder_id, name, type, md5, size, comment,
properties, is_sensitive, is_link, stored_internal, url, thumbnail_url, access_key, thumbnail_access_key, src, uri`

// Repository provides access to drive file records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new drive file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a file record. A clash on the link-mode URI index yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, f File) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO drive_files (` + fileColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING ` + fileColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		f.ID,
		f.CreatedAt,
		f.AccountID,
		f.AccountHost,
		f.FolderID,
		f.Name,
		f.Type,
		f.MD5,
		f.Size,
		f.Comment,
		f.Properties,
		f.IsSensitive,
		f.IsLink,
		f.StoredInternal,
		f.URL,
		f.ThumbnailURL,
		f.AccessKey,
		f.ThumbnailAccessKey,
		f.Src,
		f.URI,
	)

	stored, err := scanFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return File{}, ErrDuplicate
		}
		return File{}, fmt.Errorf("create drive file: %w", err)
	}
	return stored, nil
}

// FindByHash returns the oldest stored (non-link) file with the given
// content hash in the owner's scope. A nil owner means the system scope.
func (r *Repository) FindByHash(ctx context.Context, md5 string, ownerID *uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM drive_files
WHERE md5 = $1 AND account_id IS NOT DISTINCT FROM $2 AND NOT is_link
ORDER BY id ASC
LIMIT 1;`

	return r.findOne(ctx, "find drive file by hash", query, md5, ownerID)
}

// FindByURI returns the link-mode file with the given remote URI in the owner's scope.
func (r *Repository) FindByURI(ctx context.Context, uri string, ownerID *uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM drive_files
WHERE uri = $1 AND account_id IS NOT DISTINCT FROM $2
ORDER BY id ASC
LIMIT 1;`

	return r.findOne(ctx, "find drive file by uri", query, uri, ownerID)
}

// Get returns a file by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + ` FROM drive_files WHERE id = $1;`
	return r.findOne(ctx, "get drive file", query, id)
}

// UsageOf sums the sizes of all files owned by the account.
func (r *Repository) UsageOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var usage int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(size), 0)::bigint FROM drive_files WHERE account_id = $1;`, accountID).Scan(&usage)
	if err != nil {
		return 0, fmt.Errorf("sum drive usage: %w", err)
	}
	return usage, nil
}

// OldestEvictable returns the account's oldest file whose id is not in exclude.
func (r *Repository) OldestEvictable(ctx context.Context, accountID uuid.UUID, exclude []uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	// A nil slice encodes as NULL, and id <> ALL(NULL) matches nothing.
	if exclude == nil {
		exclude = []uuid.UUID{}
	}

	query := `
SELECT ` + fileColumns + `
FROM drive_files
WHERE account_id = $1 AND id <> ALL($2::uuid[])
ORDER BY id ASC
LIMIT 1;`

	return r.findOne(ctx, "find oldest drive file", query, accountID, exclude)
}

// List returns the owner's files directly inside folderID (nil for root), newest first.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, folderID *uuid.UUID, limit int) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM drive_files
WHERE account_id = $1 AND folder_id IS NOT DISTINCT FROM $2
ORDER BY id DESC
LIMIT $3;`

	rows, err := r.pool.Query(ctx, query, ownerID, folderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drive file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drive files: %w", err)
	}
	return files, nil
}

// Delete removes a file record and returns what was removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `DELETE FROM drive_files WHERE id = $1 RETURNING ` + fileColumns + `;`
	return r.findOne(ctx, "delete drive file", query, id)
}

func (r *Repository) findOne(ctx context.Context, op, query string, args ...any) (File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(
		&f.ID,
		&f.CreatedAt,
		&f.AccountID,
		&f.AccountHost,
		&f.FolderID,
		&f.Name,
		&f.Type,
		&f.MD5,
		&f.Size,
		&f.Comment,
		&f.Properties,
		&f.IsSensitive,
		&f.IsLink,
		&f.StoredInternal,
		&f.URL,
		&f.ThumbnailURL,
		&f.AccessKey,
		&f.ThumbnailAccessKey,
		&f.Src,
		&f.URI,
	)
	return f, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

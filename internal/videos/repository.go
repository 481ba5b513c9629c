package videos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidvault/backend/internal/models"
)

// Repository handles video metadata persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const videoColumns = `id, filename, COALESCE(description,''), file_size, storage_key, storage_locator, upload_time`

// Insert persists a new video row. The database assigns id and upload_time;
// both are written back into v. The row is committed before return.
func (r *Repository) Insert(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos (filename, description, file_size, storage_key, storage_locator)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, upload_time`
	err := r.pool.QueryRow(ctx, q, v.Filename, v.Description, v.FileSize, v.StorageKey, v.StorageLocator).
		Scan(&v.ID, &v.UploadTime)
	if err != nil {
		return classifyRepoError(err)
	}
	return nil
}

// GetByID returns a video by ID, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	const q = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	var v models.Video
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&v.ID, &v.Filename, &v.Description, &v.FileSize, &v.StorageKey, &v.StorageLocator, &v.UploadTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyRepoError(err)
	}
	return &v, nil
}

// List returns all videos, newest first. The id tiebreak keeps ordering
// stable across repeated calls.
func (r *Repository) List(ctx context.Context) ([]models.Video, error) {
	const q = `SELECT ` + videoColumns + ` FROM videos ORDER BY upload_time DESC, id`
	return r.queryVideos(ctx, q)
}

// Search returns videos whose filename or description contains the query,
// case-insensitively. An empty query matches everything. No match returns an
// empty slice, never an error. LIKE metacharacters (% and _) in the query are
// not escaped, so they act as wildcards.
func (r *Repository) Search(ctx context.Context, query string) ([]models.Video, error) {
	const q = `SELECT ` + videoColumns + ` FROM videos
		WHERE filename ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY upload_time DESC, id`
	return r.queryVideos(ctx, q, query)
}

// ExistsByStorageKey reports whether any row references the given object key.
// Used by the reconciler before deleting a suspected orphan.
func (r *Repository) ExistsByStorageKey(ctx context.Context, key string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM videos WHERE storage_key = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, key).Scan(&exists); err != nil {
		return false, classifyRepoError(err)
	}
	return exists, nil
}

func (r *Repository) queryVideos(ctx context.Context, q string, args ...interface{}) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classifyRepoError(err)
	}
	defer rows.Close()
	list := []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Filename, &v.Description, &v.FileSize, &v.StorageKey, &v.StorageLocator, &v.UploadTime); err != nil {
			return nil, classifyRepoError(err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyRepoError(err)
	}
	return list, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/reporting-service/internal/domain"
)

// FileRepository records artifacts uploaded to object storage.
type FileRepository interface {
	Create(ctx context.Context, file *domain.FileObject) error
	GetByID(ctx context.Context, id string) (*domain.FileObject, error)
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository returns a Postgres-backed implementation.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

func (r *fileRepository) Create(ctx context.Context, file *domain.FileObject) error {
	const query = `
        INSERT INTO file_objects (bucket, object_key, mime_type, size)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		file.Bucket,
		file.ObjectKey,
		file.MimeType,
		file.Size,
	).Scan(&file.ID, &file.CreatedAt)
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*domain.FileObject, error) {
	const query = `
        SELECT id, bucket, object_key, mime_type, size, created_at
        FROM file_objects WHERE id=$1`

	var file domain.FileObject
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Bucket,
		&file.ObjectKey,
		&file.MimeType,
		&file.Size,
		&file.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &file, nil
}

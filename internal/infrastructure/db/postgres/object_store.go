package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

// ObjectStore keeps uploaded files in the objects table. A re-upload to the
// same path replaces the stored bytes.
type ObjectStore struct {
	db DBTX
}

func NewObjectStore(db DBTX) *ObjectStore {
	return &ObjectStore{db: db}
}

func (s *ObjectStore) Put(ctx context.Context, obj domain.Object) error {
	query := `
		INSERT INTO objects (bucket, path, content_type, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bucket, path) DO UPDATE
		SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = now()`

	if _, err := s.db.Exec(ctx, query, obj.Bucket, obj.Path, obj.ContentType, obj.Data); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *ObjectStore) Get(ctx context.Context, bucket, path string) (*domain.Object, error) {
	query := `SELECT content_type, data FROM objects WHERE bucket = $1 AND path = $2`

	obj := domain.Object{Bucket: bucket, Path: path}
	if err := s.db.QueryRow(ctx, query, bucket, path).Scan(&obj.ContentType, &obj.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return &obj, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

type CredentialRepository struct {
	db DBTX
}

func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO credentials (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, cred.ID, cred.Email, cred.PasswordHash, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByEmail returns ErrInvalidCredentials for unknown addresses.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM credentials
		WHERE email = $1`

	var c domain.Credential
	err := r.db.QueryRow(ctx, query, email).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

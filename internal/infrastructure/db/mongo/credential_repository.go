package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const credentialCollection = "credentials"

type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(credentialCollection)}
}

func (r *CredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	if _, err := r.coll.InsertOne(ctx, cred); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByEmail returns ErrInvalidCredentials for unknown addresses so callers
// cannot tell a missing account from a wrong password.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var cred domain.Credential
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&cred); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &cred, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

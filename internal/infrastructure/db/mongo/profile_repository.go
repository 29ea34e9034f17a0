package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const profileCollection = "profiles"

type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profileCollection)}
}

func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) error {
	set := updateDocument(update)
	set = append(set, bson.E{Key: "updated_at", Value: now})

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.Profile{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return out, nil
}

func updateDocument(u domain.ProfileUpdate) bson.D {
	var set bson.D
	if u.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *u.Name})
	}
	if u.PhoneNumber != nil {
		set = append(set, bson.E{Key: "phone_number", Value: *u.PhoneNumber})
	}
	if u.Career != nil {
		set = append(set, bson.E{Key: "career", Value: *u.Career})
	}
	if u.PaymentReceiptURL != nil {
		set = append(set, bson.E{Key: "payment_receipt_url", Value: *u.PaymentReceiptURL})
	}
	if u.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *u.Status})
	}
	return set
}

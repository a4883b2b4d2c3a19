// internal/repository/mongo/profile_repo.go
package mongo

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCollectionName = "profiles"

type profileDocument struct {
	UserID           primitive.ObjectID `bson:"_id"`
	DisplayName      string             `bson:"displayName"`
	Goal             string             `bson:"goal,omitempty"`
	Experience       string             `bson:"experience,omitempty"`
	WeeklyDistanceKm float64            `bson:"weeklyDistanceKm,omitempty"`
	TimeZone         string             `bson:"timeZone,omitempty"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

// mongoProfileRepository implements repository.ProfileRepository using MongoDB.
type mongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a new profile repository.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

// Upsert creates or replaces the profile of profile.UserID.
func (r *mongoProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	if profile.UserID == primitive.NilObjectID {
		return errors.New("profile requires userId")
	}
	profile.UpdatedAt = time.Now().UTC()
	doc := profileDocument{
		UserID:           profile.UserID,
		DisplayName:      profile.DisplayName,
		Goal:             profile.Goal,
		Experience:       string(profile.Experience),
		WeeklyDistanceKm: profile.WeeklyDistanceKm,
		TimeZone:         profile.TimeZone,
		UpdatedAt:        profile.UpdatedAt,
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": profile.UserID}, doc, options.Replace().SetUpsert(true))
	return err
}

// GetByUserID retrieves the profile of a user.
func (r *mongoProfileRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	var doc profileDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &domain.Profile{
		UserID:           doc.UserID,
		DisplayName:      doc.DisplayName,
		Goal:             doc.Goal,
		Experience:       domain.Experience(doc.Experience),
		WeeklyDistanceKm: doc.WeeklyDistanceKm,
		TimeZone:         doc.TimeZone,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

// internal/repository/mongo/preview_repo.go
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

const previewCollectionName = "previews"

// Resolved previews are kept for a day for auditing, then removed by the TTL index.
const previewRetention = 24 * time.Hour

// mongoPreviewRepository implements repository.PreviewRepository
type mongoPreviewRepository struct {
	collection *mongo.Collection
}

// NewMongoPreviewRepository creates a new preview repository.
func NewMongoPreviewRepository(db *mongo.Database) repository.PreviewRepository {
	return &mongoPreviewRepository{
		collection: db.Collection(previewCollectionName),
	}
}

// Create inserts a held preview. The partial unique index on planId rejects a
// second held preview for the same plan.
func (r *mongoPreviewRepository) Create(ctx context.Context, preview *domain.PreviewSet) error {
	if preview.ID == "" || preview.PlanID == primitive.NilObjectID {
		return errors.New("preview requires id and planId")
	}
	preview.State = domain.PreviewHeld
	if preview.CreatedAt.IsZero() {
		preview.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, toPreviewDocument(preview))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetHeld returns the plan's held preview, whether or not it has expired.
func (r *mongoPreviewRepository) GetHeld(ctx context.Context, planID primitive.ObjectID) (*domain.PreviewSet, error) {
	var doc previewDocument
	filter := bson.M{"planId": planID, "state": string(domain.PreviewHeld)}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return fromPreviewDocument(doc)
}

func (r *mongoPreviewRepository) GetByID(ctx context.Context, previewID string) (*domain.PreviewSet, error) {
	var doc previewDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": previewID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return fromPreviewDocument(doc)
}

// Transition performs a conditional state change so each preview leaves the
// held state exactly once.
func (r *mongoPreviewRepository) Transition(ctx context.Context, previewID string, from, to domain.PreviewState, at time.Time) error {
	filter := bson.M{"_id": previewID, "state": string(from)}
	update := bson.M{"$set": bson.M{
		"state":      string(to),
		"resolvedAt": at.UTC(),
		"purgeAt":    at.UTC().Add(previewRetention),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrStateMismatch
	}
	return nil
}

// EnsurePreviewIndexes creates necessary indexes. Call during startup.
func EnsurePreviewIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// At most one held preview per plan
			Keys: bson.D{{Key: "planId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"state": string(domain.PreviewHeld)}).
				SetName("one_held_preview_per_plan"),
		},
		{
			// Purge resolved previews after the retention window
			Keys:    bson.D{{Key: "purgeAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// internal/repository/mongo/clarification_repo.go
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

const clarificationCollectionName = "clarifications"

type clarificationDocument struct {
	ID              string                       `bson:"_id"`
	PlanID          primitive.ObjectID           `bson:"planId"`
	Question        string                       `bson:"question"`
	Options         []domain.ClarificationOption `bson:"options"`
	OriginalMessage string                       `bson:"originalMessage"`
	DetectedPhrase  string                       `bson:"detectedPhrase"`
	PhraseStart     int                          `bson:"phraseStart"`
	PhraseEnd       int                          `bson:"phraseEnd"`
	State           string                       `bson:"state"`
	CreatedAt       time.Time                    `bson:"createdAt"`
	UpdatedAt       time.Time                    `bson:"updatedAt"`
}

// mongoClarificationRepository implements repository.ClarificationRepository
type mongoClarificationRepository struct {
	collection *mongo.Collection
}

// NewMongoClarificationRepository creates a new clarification repository.
func NewMongoClarificationRepository(db *mongo.Database) repository.ClarificationRepository {
	return &mongoClarificationRepository{
		collection: db.Collection(clarificationCollectionName),
	}
}

// Create supersedes any awaiting request for the plan, then stores req as awaiting.
func (r *mongoClarificationRepository) Create(ctx context.Context, req *domain.ClarificationRequest) error {
	if req.ID == "" || req.PlanID == primitive.NilObjectID {
		return errors.New("clarification requires id and planId")
	}
	now := time.Now().UTC()

	supersede := bson.M{"planId": req.PlanID, "state": string(domain.ClarificationAwaiting)}
	update := bson.M{"$set": bson.M{"state": string(domain.ClarificationSuperseded), "updatedAt": now}}
	if _, err := r.collection.UpdateMany(ctx, supersede, update); err != nil {
		return err
	}

	req.State = domain.ClarificationAwaiting
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	doc := clarificationDocument{
		ID:              req.ID,
		PlanID:          req.PlanID,
		Question:        req.Question,
		Options:         req.Options,
		OriginalMessage: req.Context.OriginalMessage,
		DetectedPhrase:  req.Context.DetectedPhrase,
		PhraseStart:     req.Context.PhraseStart,
		PhraseEnd:       req.Context.PhraseEnd,
		State:           string(req.State),
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       now,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAwaiting returns the live clarification for a plan.
func (r *mongoClarificationRepository) GetAwaiting(ctx context.Context, planID primitive.ObjectID) (*domain.ClarificationRequest, error) {
	var doc clarificationDocument
	filter := bson.M{"planId": planID, "state": string(domain.ClarificationAwaiting)}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &domain.ClarificationRequest{
		ID:       doc.ID,
		PlanID:   doc.PlanID,
		Question: doc.Question,
		Options:  doc.Options,
		Context: domain.ClarificationContext{
			OriginalMessage: doc.OriginalMessage,
			DetectedPhrase:  doc.DetectedPhrase,
			PhraseStart:     doc.PhraseStart,
			PhraseEnd:       doc.PhraseEnd,
		},
		State:     domain.ClarificationState(doc.State),
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Transition changes state only if the request is currently in "from".
func (r *mongoClarificationRepository) Transition(ctx context.Context, clarificationID string, from, to domain.ClarificationState) error {
	filter := bson.M{"_id": clarificationID, "state": string(from)}
	update := bson.M{"$set": bson.M{"state": string(to), "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrStateMismatch
	}
	return nil
}

// EnsureClarificationIndexes creates necessary indexes. Call during startup.
func EnsureClarificationIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "state", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

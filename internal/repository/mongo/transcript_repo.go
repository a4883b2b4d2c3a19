// internal/repository/mongo/transcript_repo.go
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

const transcriptCollectionName = "transcripts"

type messageDocument struct {
	Seq       int       `bson:"seq"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
}

type transcriptDocument struct {
	PlanID   primitive.ObjectID `bson:"_id"`
	OwnerID  primitive.ObjectID `bson:"ownerId"`
	Count    int                `bson:"count"`
	Messages []messageDocument  `bson:"messages"`
}

// mongoTranscriptRepository implements repository.TranscriptRepository.
// One document per plan; messages are only ever $push-ed.
type mongoTranscriptRepository struct {
	collection *mongo.Collection
}

// NewMongoTranscriptRepository creates a new transcript repository.
func NewMongoTranscriptRepository(db *mongo.Database) repository.TranscriptRepository {
	return &mongoTranscriptRepository{
		collection: db.Collection(transcriptCollectionName),
	}
}

// Append adds messages to the end of the plan's transcript. Sequence numbers
// continue from the stored count.
func (r *mongoTranscriptRepository) Append(ctx context.Context, planID, ownerID primitive.ObjectID, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if planID == primitive.NilObjectID {
		return errors.New("transcript append requires planId")
	}

	// Reserve sequence numbers first so concurrent appends cannot collide.
	var reserved transcriptDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": planID},
		bson.M{
			"$inc":         bson.M{"count": len(msgs)},
			"$setOnInsert": bson.M{"ownerId": ownerID, "messages": bson.A{}},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.Before).
			SetProjection(bson.M{"count": 1}),
	).Decode(&reserved)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	docs := make([]messageDocument, len(msgs))
	for i, m := range msgs {
		created := m.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		docs[i] = messageDocument{Seq: reserved.Count + i, Role: string(m.Role), Content: m.Content, CreatedAt: created}
	}

	update := bson.M{"$push": bson.M{"messages": bson.M{
		"$each": docs,
		"$sort": bson.M{"seq": 1},
	}}}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": planID}, update)
	return err
}

// Tail returns the last n messages using a $slice projection.
func (r *mongoTranscriptRepository) Tail(ctx context.Context, planID primitive.ObjectID, n int) ([]domain.ChatMessage, error) {
	findOptions := options.FindOne()
	if n > 0 {
		findOptions.SetProjection(bson.M{"messages": bson.M{"$slice": -n}})
	}

	var doc transcriptDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": planID}, findOptions).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []domain.ChatMessage{}, nil
		}
		return nil, err
	}

	out := make([]domain.ChatMessage, len(doc.Messages))
	for i, m := range doc.Messages {
		out[i] = domain.ChatMessage{Seq: m.Seq, Role: domain.Role(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return out, nil
}

// EnsureTranscriptIndexes creates necessary indexes. Call during startup.
func EnsureTranscriptIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

var _ repository.TranscriptRepository = (*mongoTranscriptRepository)(nil)

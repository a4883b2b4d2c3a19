package mongo

import (
	"alcyxob/run-coach/internal/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection.
	// The initial connection might succeed while the server is unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection used by the engine.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		collection string
		ensure     func(context.Context, *mongo.Collection) error
	}{
		{trainingPlanCollectionName, EnsureTrainingPlanIndexes},
		{previewCollectionName, EnsurePreviewIndexes},
		{clarificationCollectionName, EnsureClarificationIndexes},
		{transcriptCollectionName, EnsureTranscriptIndexes},
	}
	for _, s := range steps {
		if err := s.ensure(ctx, db.Collection(s.collection)); err != nil {
			return fmt.Errorf("indexes for %s: %w", s.collection, err)
		}
	}
	return nil
}

// NewRepositorySet creates every MongoDB repository over db.
func NewRepositorySet(db *mongo.Database) repository.Set {
	return repository.Set{
		Plans:          NewMongoTrainingPlanRepository(db),
		Previews:       NewMongoPreviewRepository(db),
		Clarifications: NewMongoClarificationRepository(db),
		Transcripts:    NewMongoTranscriptRepository(db),
		Profiles:       NewMongoProfileRepository(db),
	}
}

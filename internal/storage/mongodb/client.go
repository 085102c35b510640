package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// Connect opens a MongoDB client and verifies it with a ping
func Connect(mongoURI string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// Store bundles the demand and resource repositories over one client
type Store struct {
	client    *mongo.Client
	Demands   *DemandRepository
	Resources *ResourceRepository
}

// Open connects to MongoDB and creates both repositories
func Open(mongoURI, database, demandCollection, resourceCollection string) (*Store, error) {
	client, err := Connect(mongoURI)
	if err != nil {
		return nil, err
	}

	db := client.Database(database)
	return &Store{
		client:    client,
		Demands:   &DemandRepository{coll: db.Collection(demandCollection)},
		Resources: &ResourceRepository{coll: db.Collection(resourceCollection)},
	}, nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

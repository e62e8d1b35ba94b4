// Package state implements the State Store: a single-process-writer,
// many-reader persistent key-value store keyed by corpus path, holding
// one models.FileState row per PDF. Concurrent readers are allowed;
// writers are serialized through a mutex so two goroutines can never
// interleave an upsert for the same or different paths.
package state

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pravachan-index/internal/pkgerrors"
	"pravachan-index/models"
)

// Store is the State Store's capability set, independent of backing
// technology (Mongo-backed Store below, or the SQLite fallback in
// sqlite.go for single-node deployments without a Mongo cluster).
type Store interface {
	Get(ctx context.Context, path string) (*models.FileState, error)
	Upsert(ctx context.Context, fs models.FileState) error
	All(ctx context.Context) ([]models.FileState, error)
	Delete(ctx context.Context, path string) error
}

// MongoStore is the default Store backing: a single shared collection
// with mutex-guarded write access.
type MongoStore struct {
	mu         sync.Mutex
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{
		collection: client.Database(dbName).Collection("file_states"),
	}
}

func (s *MongoStore) Get(ctx context.Context, path string) (*models.FileState, error) {
	var fs models.FileState
	err := s.collection.FindOne(ctx, bson.M{"path": path}).Decode(&fs)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state get %s: %w", path, err)
	}
	return &fs, nil
}

// Upsert atomically replaces the row for fs.Path. Durability is the
// Mongo write concern's responsibility; the mutex here only serializes
// concurrent writers within this process.
func (s *MongoStore) Upsert(ctx context.Context, fs models.FileState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"path": fs.Path}, fs,
		options.Replace().SetUpsert(true))
	if err != nil {
		return pkgerrors.New(pkgerrors.KindFatal, "state upsert failed", err).WithContext("path", fs.Path)
	}
	return nil
}

func (s *MongoStore) All(ctx context.Context) ([]models.FileState, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("state all: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.FileState
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("state all: decode: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.collection.DeleteOne(ctx, bson.M{"path": path})
	if err != nil {
		return fmt.Errorf("state delete %s: %w", path, err)
	}
	return nil
}

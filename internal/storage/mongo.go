package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// containerID is the _id given to a freshly created container document.
// Collections that already hold a container keep its existing _id.
const containerID = "tasks"

type mongoContainer struct {
	ID      any           `bson:"_id"`
	Tasks   []domain.Task `bson:"tasks"`
	Version int64         `bson:"version"`
}

// MongoStore keeps the container as one document in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	id     any
}

var _ ports.ContainerStore = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return newMongoStore(client, client.Database(database).Collection(collection)), nil
}

func newMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, coll: coll}
}

// Init adopts the container document already present in the collection,
// whatever its _id, and only creates one when the collection is empty.
// Documents written without a version field get version 0.
func (s *MongoStore) Init(ctx context.Context) error {
	var existing struct {
		ID      any    `bson:"_id"`
		Version *int64 `bson:"version"`
	}
	err := s.coll.FindOne(ctx, bson.M{}).Decode(&existing)
	switch {
	case err == nil:
		s.id = existing.ID
		if existing.Version != nil {
			return nil
		}
		_, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": existing.ID, "version": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"version": int64(0)}},
		)
		if err != nil {
			return fmt.Errorf("add container version: %w", err)
		}
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("find container: %w", err)
	}

	s.id = containerID
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": containerID},
		bson.M{"$setOnInsert": bson.M{"tasks": bson.A{}, "version": int64(0)}},
		options.Update().SetUpsert(true),
	)
	// two processes racing the upsert: the loser sees a duplicate key
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("init container: %w", err)
	}
	return nil
}

func (s *MongoStore) docID() any {
	if s.id == nil {
		return containerID
	}
	return s.id
}

func (s *MongoStore) Load(ctx context.Context) (*domain.Container, error) {
	var doc mongoContainer
	err := s.coll.FindOne(ctx, bson.M{"_id": s.docID()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("container not initialized")
		}
		return nil, fmt.Errorf("find container: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = []domain.Task{}
	}
	return &domain.Container{Tasks: doc.Tasks, Version: doc.Version}, nil
}

func (s *MongoStore) Save(ctx context.Context, c *domain.Container) (int64, error) {
	tasks := c.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	id := s.docID()
	next := mongoContainer{ID: id, Tasks: tasks, Version: c.Version + 1}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": c.Version}, next)
	if err != nil {
		return 0, fmt.Errorf("replace container: %w", err)
	}
	if res.MatchedCount == 0 {
		return 0, ports.ErrVersionConflict
	}
	return next.Version, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

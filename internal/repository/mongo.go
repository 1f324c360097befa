package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoBackend stores each collection in a MongoDB database.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoBackend connects, pings and ensures indexes.
func NewMongoBackend(ctx context.Context, uri, database string, timeout time.Duration) (*MongoBackend, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("repository: mongo uri must not be empty")
	}
	if strings.TrimSpace(database) == "" {
		return nil, errors.New("repository: mongo database must not be empty")
	}

	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("repository: mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(timeout))
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("repository: mongo ping: %w", err)
	}

	b := &MongoBackend{client: client, db: client.Database(database)}
	if err := b.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return b, nil
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (b *MongoBackend) ensureIndexes(ctx context.Context) error {
	for coll, fields := range uniqueFields {
		for _, f := range fields {
			model := mongo.IndexModel{
				Keys:    bson.D{{Key: f, Value: 1}},
				Options: options.Index().SetUnique(true),
			}
			if _, err := b.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
				return fmt.Errorf("repository: create %s.%s index: %w", coll, f, err)
			}
		}
	}
	lookups := map[string]string{
		CollMovies:        "user_email",
		CollConversations: "user_email",
		CollMessages:      "convo_id",
	}
	for coll, f := range lookups {
		model := mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}}
		if _, err := b.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("repository: create %s.%s index: %w", coll, f, err)
		}
	}
	return nil
}

var byID = bson.D{{Key: fieldID, Value: 1}}

func (b *MongoBackend) InsertOne(ctx context.Context, coll string, doc any) error {
	_, err := b.db.Collection(coll).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (b *MongoBackend) FindOne(ctx context.Context, coll string, conds []Field, out any) (bool, error) {
	err := b.db.Collection(coll).FindOne(ctx, filterDoc(conds), options.FindOne().SetSort(byID)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *MongoBackend) Find(ctx context.Context, coll string, conds []Field, out any) error {
	cur, err := b.db.Collection(coll).Find(ctx, filterDoc(conds), options.Find().SetSort(byID))
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (b *MongoBackend) UpdateOne(ctx context.Context, coll string, conds []Field, set []Field) (bool, error) {
	res, err := b.db.Collection(coll).UpdateOne(ctx, filterDoc(conds), bson.D{{Key: "$set", Value: fieldsDoc(set)}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (b *MongoBackend) DeleteOne(ctx context.Context, coll string, conds []Field) (bool, error) {
	res, err := b.db.Collection(coll).DeleteOne(ctx, filterDoc(conds))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (b *MongoBackend) Push(ctx context.Context, coll string, conds []Field, field string, values []any, set []Field) (bool, error) {
	update := bson.D{{Key: "$push", Value: bson.D{{Key: field, Value: bson.D{{Key: "$each", Value: values}}}}}}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: fieldsDoc(set)})
	}
	res, err := b.db.Collection(coll).UpdateOne(ctx, filterDoc(conds), update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

func filterDoc(conds []Field) bson.D {
	return fieldsDoc(conds)
}

func fieldsDoc(fs []Field) bson.D {
	d := make(bson.D, 0, len(fs))
	for _, f := range fs {
		d = append(d, bson.E{Key: f.Name, Value: f.Value})
	}
	return d
}

package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDocumentStore maps collections one-to-one onto Mongo collections and
// document ids onto _id.
type MongoDocumentStore struct {
	db *mongo.Database
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

func (s *MongoDocumentStore) PutDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := bson.M{}
	for k, v := range resolveTimestamps(fields, utcNow) {
		doc[k] = v
	}
	doc["_id"] = id

	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *MongoDocumentStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return fromBSON(raw), nil
}

func (s *MongoDocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range resolveTimestamps(fields, utcNow) {
		set[k] = v
	}

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDocumentStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, *fromBSON(raw))
	}
	return docs, nil
}

func (s *MongoDocumentStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// fromBSON strips _id and converts nested documents into plain maps.
func fromBSON(raw bson.M) *Document {
	id, _ := raw["_id"].(string)
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = plainValue(v)
	}
	return &Document{ID: id, Fields: fields}
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			out[k] = plainValue(nested)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

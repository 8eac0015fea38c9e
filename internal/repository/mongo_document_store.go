package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDocumentStore implementa DocumentStore con una colección de Mongo por colección lógica.
// La clave del documento se guarda en _id.
type MongoDocumentStore struct {
	db *mongo.Database
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

func (s *MongoDocumentStore) Get(ctx context.Context, collection, key string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoDocumentStore) Put(ctx context.Context, collection, key string, doc any) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoDocumentStore) Create(ctx context.Context, collection, key string, doc any) error {
	withID, err := documentWithID(key, doc)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).InsertOne(ctx, withID)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *MongoDocumentStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDocumentStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (s *MongoDocumentStore) DeleteIf(ctx context.Context, collection, key, field, value string) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key, field: value})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoDocumentStore) ExistsByField(ctx context.Context, collection, field, value string) (bool, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{field: value}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoDocumentStore) Ping(ctx context.Context) error {
	var result bson.M
	return s.db.RunCommand(ctx, bson.M{"ping": 1}).Decode(&result)
}

func documentWithID(key string, doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["_id"] = key
	return m, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"mnemo/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// factDocument is the search-index document shape for a fact.
type factDocument struct {
	FactID      string    `bson:"fact_id"`
	SessionID   string    `bson:"session_id"`
	Content     string    `bson:"content"`
	CIARScore   float64   `bson:"ciar_score"`
	ExtractedAt time.Time `bson:"extracted_at"`
}

// MongoStore is the SearchStore implementation backed by a MongoDB text
// index on fact content.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a search store over the given collection. The
// collection is expected to carry a text index on the content field.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// IndexFacts upserts facts into the search index.
func (s *MongoStore) IndexFacts(ctx context.Context, facts []*models.Fact) error {
	for _, fact := range facts {
		doc := factDocument{
			FactID:      fact.ID,
			SessionID:   fact.SessionID,
			Content:     fact.Content,
			CIARScore:   fact.CIARScore,
			ExtractedAt: fact.ExtractedAt,
		}
		_, err := s.collection.UpdateOne(ctx,
			bson.M{"fact_id": fact.ID},
			bson.M{"$set": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to index fact %s: %w", fact.ID, err)
		}
	}
	return nil
}

// Search performs a full-text search over indexed fact content, best
// matches first.
func (s *MongoStore) Search(ctx context.Context, query string, topK int) ([]*models.Fact, error) {
	filter := bson.M{"$text": bson.M{"$search": query}}
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(int64(topK))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to run text search: %w", err)
	}
	defer cursor.Close(ctx)

	var facts []*models.Fact
	for cursor.Next(ctx) {
		var doc factDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode search result: %w", err)
		}
		facts = append(facts, &models.Fact{
			ID:          doc.FactID,
			SessionID:   doc.SessionID,
			Content:     doc.Content,
			CIARScore:   doc.CIARScore,
			SourceType:  "text_search",
			ExtractedAt: doc.ExtractedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("search cursor failed: %w", err)
	}
	return facts, nil
}

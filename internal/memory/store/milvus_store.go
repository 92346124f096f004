package store

import (
	"context"
	"fmt"
	"strings"

	"mnemo/internal/database/milvus"
	"mnemo/internal/embedding"
	"mnemo/internal/models"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore is the VectorStore implementation backed by Milvus.
type MilvusStore struct {
	client   *milvus.MilvusClient
	embedder embedding.Embedding
}

// NewMilvusStore creates the store and makes sure the fact collection exists.
func NewMilvusStore(ctx context.Context, client *milvus.MilvusClient, embedder embedding.Embedding) (*MilvusStore, error) {
	if err := client.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return &MilvusStore{client: client, embedder: embedder}, nil
}

// AddFacts embeds fact contents in one batch and inserts them.
func (s *MilvusStore) AddFacts(ctx context.Context, facts []*models.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	contents := make([]string, len(facts))
	for i, fact := range facts {
		contents[i] = fact.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed facts: %w", err)
	}
	if len(vectors) != len(facts) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d facts", len(vectors), len(facts))
	}

	ids := make([]string, len(facts))
	sessions := make([]string, len(facts))
	scores := make([]float64, len(facts))
	for i, fact := range facts {
		ids[i] = fact.ID
		sessions[i] = fact.SessionID
		scores[i] = fact.CIARScore
	}

	return s.client.Insert(ctx,
		entity.NewColumnVarChar("fact_id", ids),
		entity.NewColumnVarChar("session_id", sessions),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnDouble("ciar_score", scores),
		entity.NewColumnFloatVector("embedding", len(vectors[0]), vectors),
	)
}

// SearchSimilar embeds the query and returns the most similar facts,
// optionally restricted to one session.
func (s *MilvusStore) SearchSimilar(ctx context.Context, sessionID, query string, topK int) ([]*models.Fact, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	expr := ""
	if sessionID != "" {
		expr = fmt.Sprintf("session_id == %q", strings.ReplaceAll(sessionID, `"`, ""))
	}

	results, err := s.client.Search(ctx, expr, []string{"fact_id", "session_id", "content", "ciar_score"}, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var facts []*models.Fact
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			fact := &models.Fact{SourceType: "vector_search"}
			for _, field := range result.Fields {
				switch field.Name() {
				case "fact_id":
					fact.ID, _ = field.GetAsString(i)
				case "session_id":
					fact.SessionID, _ = field.GetAsString(i)
				case "content":
					fact.Content, _ = field.GetAsString(i)
				case "ciar_score":
					fact.CIARScore, _ = field.GetAsDouble(i)
				}
			}
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

package store

import (
	"context"
	"fmt"

	"mnemo/internal/models"
)

// FactStore is the relational read/write surface for scored facts.
type FactStore interface {
	SaveFacts(ctx context.Context, facts []*models.Fact) error
	QueryFacts(ctx context.Context, query models.FactQuery) ([]*models.Fact, error)
}

// VectorStore indexes facts for similarity retrieval.
type VectorStore interface {
	AddFacts(ctx context.Context, facts []*models.Fact) error
	SearchSimilar(ctx context.Context, sessionID, query string, topK int) ([]*models.Fact, error)
}

// GraphStore persists relationships between entities mentioned in facts.
type GraphStore interface {
	AddRelations(ctx context.Context, relations []*models.Relation) error
	GetRelations(ctx context.Context, sessionID string) ([]*models.Relation, error)
}

// SearchStore indexes fact content for full-text retrieval.
type SearchStore interface {
	IndexFacts(ctx context.Context, facts []*models.Fact) error
	Search(ctx context.Context, query string, topK int) ([]*models.Fact, error)
}

// StoreType selects a knowledge store for routed queries.
type StoreType string

const (
	StoreTypeVector StoreType = "vector"
	StoreTypeGraph  StoreType = "graph"
	StoreTypeSearch StoreType = "search"
)

// Manager routes a read to the appropriate knowledge store. It owns no
// state of its own; each store remains independently usable.
type Manager struct {
	Vector VectorStore
	Graph  GraphStore
	Search SearchStore
}

// NewManager creates a store router over the given specialized stores.
func NewManager(vector VectorStore, graph GraphStore, search SearchStore) *Manager {
	return &Manager{Vector: vector, Graph: graph, Search: search}
}

// QueryParams carries the per-store query parameters for a routed read.
type QueryParams struct {
	SessionID string
	Query     string
	TopK      int
}

// Query dispatches to the store selected by storeType. Graph reads return
// relations rather than facts and are served by GetRelations directly, so
// Query supports the vector and search kinds.
func (m *Manager) Query(ctx context.Context, storeType StoreType, params QueryParams) ([]*models.Fact, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = 5
	}
	switch storeType {
	case StoreTypeVector:
		return m.Vector.SearchSimilar(ctx, params.SessionID, params.Query, topK)
	case StoreTypeSearch:
		return m.Search.Search(ctx, params.Query, topK)
	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}

package store

import (
	"context"
	"fmt"
	"regexp"

	neo4jdb "mnemo/internal/database/neo4j"
	"mnemo/internal/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// relationTypePattern restricts relation types to safe Cypher identifiers,
// since relationship types cannot be parameterized.
var relationTypePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Neo4jStore is the GraphStore implementation backed by Neo4j.
type Neo4jStore struct {
	client *neo4jdb.Neo4jClient
}

// NewNeo4jStore creates a new Neo4jStore.
func NewNeo4jStore(client *neo4jdb.Neo4jClient) *Neo4jStore {
	return &Neo4jStore{client: client}
}

// AddRelations merges a list of relations into the graph, keyed by session.
func (s *Neo4jStore) AddRelations(ctx context.Context, relations []*models.Relation) error {
	for _, rel := range relations {
		if !relationTypePattern.MatchString(rel.Type) {
			return fmt.Errorf("invalid relation type: %q", rel.Type)
		}
		query := `
		MERGE (source:Entity {name: $source_name, session_id: $session_id})
		MERGE (target:Entity {name: $target_name, session_id: $session_id})
		MERGE (source)-[:` + rel.Type + `]->(target)
		`
		params := map[string]interface{}{
			"source_name": rel.Source,
			"target_name": rel.Target,
			"session_id":  rel.SessionID,
		}
		_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
			return tx.Run(ctx, query, params)
		})
		if err != nil {
			return fmt.Errorf("failed to add relation to neo4j: %w", err)
		}
	}
	return nil
}

// GetRelations retrieves all relations recorded for a session.
func (s *Neo4jStore) GetRelations(ctx context.Context, sessionID string) ([]*models.Relation, error) {
	query := `
	MATCH (source:Entity {session_id: $session_id})-[r]->(target:Entity {session_id: $session_id})
	RETURN source.name AS source, type(r) AS type, target.name AS target
	`
	params := map[string]interface{}{
		"session_id": sessionID,
	}

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var relations []*models.Relation
		for res.Next(ctx) {
			record := res.Record()
			source, _ := record.Get("source")
			target, _ := record.Get("target")
			relType, _ := record.Get("type")

			relations = append(relations, &models.Relation{
				Source:    source.(string),
				Target:    target.(string),
				Type:      relType.(string),
				SessionID: sessionID,
			})
		}
		return relations, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get relations from neo4j: %w", err)
	}

	return result.([]*models.Relation), nil
}

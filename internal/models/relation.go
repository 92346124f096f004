package models

// Relation represents a relationship between two entities extracted from a
// topic segment, persisted to the graph store.
type Relation struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

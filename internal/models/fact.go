package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// FactType classifies how a fact was expressed in conversation.
type FactType string

const (
	FactTypePreference   FactType = "preference"
	FactTypeConstraint   FactType = "constraint"
	FactTypeEntity       FactType = "entity"
	FactTypeMention      FactType = "mention"
	FactTypeRelationship FactType = "relationship"
	FactTypeEvent        FactType = "event"
)

// FactCategory is the domain a fact belongs to.
type FactCategory string

const (
	FactCategoryPersonal    FactCategory = "personal"
	FactCategoryBusiness    FactCategory = "business"
	FactCategoryTechnical   FactCategory = "technical"
	FactCategoryOperational FactCategory = "operational"
)

// Fact represents a scored unit of retained information in working memory.
// Its significance is the CIAR score: certainty * impact * age_decay *
// recency_boost, rounded to 4 decimal places.
type Fact struct {
	ID        string `json:"fact_id"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`

	// CIAR components
	CIARScore    float64 `json:"ciar_score"`
	Certainty    float64 `json:"certainty"`
	Impact       float64 `json:"impact"`
	AgeDecay     float64 `json:"age_decay"`
	RecencyBoost float64 `json:"recency_boost"`

	// Provenance
	SourceURI  string `json:"source_uri,omitempty"`
	SourceType string `json:"source_type"`

	// Classification
	FactType     FactType     `json:"fact_type,omitempty"`
	FactCategory FactCategory `json:"fact_category,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	ExtractedAt  time.Time `json:"extracted_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// DefaultDecayLambda is the per-day decay rate applied by ApplyAgeDecay.
const DefaultDecayLambda = 0.1

// NewFact creates a fact with the standard extraction-time defaults.
func NewFact(sessionID, content string) *Fact {
	now := time.Now().UTC()
	f := &Fact{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Content:      content,
		Certainty:    0.7,
		Impact:       0.5,
		AgeDecay:     1.0,
		RecencyBoost: 1.0,
		SourceType:   "extracted",
		ExtractedAt:  now,
		LastAccessed: now,
	}
	f.CIARScore = ComputeCIAR(f.Certainty, f.Impact, f.AgeDecay, f.RecencyBoost)
	return f
}

// ComputeCIAR returns certainty * impact * ageDecay * recencyBoost rounded to
// 4 decimal places. Inputs are assumed to already satisfy their documented
// ranges; range enforcement happens at construction, not here.
func ComputeCIAR(certainty, impact, ageDecay, recencyBoost float64) float64 {
	return round4(certainty * impact * ageDecay * recencyBoost)
}

// Validate checks the fact's fields against the data-model constraints.
func (f *Fact) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("fact_id is required")
	}
	if n := len(f.Content); n < 1 || n > 5000 {
		return fmt.Errorf("content length must be 1-5000, got %d", n)
	}
	if err := inUnitRange("certainty", f.Certainty); err != nil {
		return err
	}
	if err := inUnitRange("impact", f.Impact); err != nil {
		return err
	}
	if err := inUnitRange("age_decay", f.AgeDecay); err != nil {
		return err
	}
	if err := inUnitRange("ciar_score", f.CIARScore); err != nil {
		return err
	}
	if f.RecencyBoost < 0 {
		return fmt.Errorf("recency_boost must be >= 0, got %f", f.RecencyBoost)
	}
	if f.AccessCount < 0 {
		return fmt.Errorf("access_count must be >= 0, got %d", f.AccessCount)
	}
	if f.FactType != "" {
		switch f.FactType {
		case FactTypePreference, FactTypeConstraint, FactTypeEntity, FactTypeMention, FactTypeRelationship, FactTypeEvent:
		default:
			return fmt.Errorf("unknown fact_type: %s", f.FactType)
		}
	}
	if f.FactCategory != "" {
		switch f.FactCategory {
		case FactCategoryPersonal, FactCategoryBusiness, FactCategoryTechnical, FactCategoryOperational:
		default:
			return fmt.Errorf("unknown fact_category: %s", f.FactCategory)
		}
	}
	return nil
}

// EnsureScore recomputes the CIAR score when the stored value has drifted
// from its components by more than 0.01. Stored scores are never trusted
// past that tolerance.
func (f *Fact) EnsureScore() {
	expected := ComputeCIAR(f.Certainty, f.Impact, f.AgeDecay, f.RecencyBoost)
	if math.Abs(f.CIARScore-expected) > 0.01 {
		f.CIARScore = expected
	}
}

// RecordAccess bumps the access counter, refreshes the recency boost
// (5% per recorded access) and recomputes the CIAR score.
func (f *Fact) RecordAccess() {
	f.LastAccessed = time.Now().UTC()
	f.AccessCount++
	f.RecencyBoost = 1.0 + 0.05*float64(f.AccessCount)
	f.CIARScore = ComputeCIAR(f.Certainty, f.Impact, f.AgeDecay, f.RecencyBoost)
}

// ApplyAgeDecay refreshes the age-decay factor from the whole days elapsed
// since extraction: clamp(2^(-lambda*days), 0, 1). A zero or negative age
// leaves the factor at 1.0.
func (f *Fact) ApplyAgeDecay(decayLambda float64) {
	ageDays := int(time.Now().UTC().Sub(f.ExtractedAt).Hours() / 24)
	decay := math.Pow(2, -decayLambda*float64(ageDays))
	f.AgeDecay = round4(math.Max(0.0, math.Min(1.0, decay)))
	f.CIARScore = ComputeCIAR(f.Certainty, f.Impact, f.AgeDecay, f.RecencyBoost)
}

// FactQuery is the read filter used to retrieve facts from a fact store.
type FactQuery struct {
	SessionID      string         `json:"session_id,omitempty"`
	MinCIARScore   float64        `json:"min_ciar_score"`
	FactTypes      []FactType     `json:"fact_types,omitempty"`
	FactCategories []FactCategory `json:"fact_categories,omitempty"`
	Limit          int            `json:"limit"`
	OrderBy        string         `json:"order_by"`
}

// DefaultFactQuery returns a query with the standard defaults: minimum score
// 0.6, limit 10, ordered by score descending.
func DefaultFactQuery() FactQuery {
	return FactQuery{
		MinCIARScore: 0.6,
		Limit:        10,
		OrderBy:      "ciar_score DESC",
	}
}

// Normalize clamps the query's limit into [1,100] and fills in defaults for
// unset fields.
func (q *FactQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.OrderBy == "" {
		q.OrderBy = "ciar_score DESC"
	}
}

func inUnitRange(name string, v float64) error {
	if v < 0.0 || v > 1.0 {
		return fmt.Errorf("%s must be in [0,1], got %f", name, v)
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

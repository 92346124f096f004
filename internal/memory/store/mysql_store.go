package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mnemo/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// factRecord is the relational row shape for a fact. Metadata is stored as a
// JSON column so free-form context survives the round trip.
type factRecord struct {
	FactID       string         `gorm:"column:fact_id;primaryKey;size:64"`
	SessionID    string         `gorm:"column:session_id;size:64;index"`
	Content      string         `gorm:"column:content;size:5000"`
	CIARScore    float64        `gorm:"column:ciar_score;index"`
	Certainty    float64        `gorm:"column:certainty"`
	Impact       float64        `gorm:"column:impact"`
	AgeDecay     float64        `gorm:"column:age_decay"`
	RecencyBoost float64        `gorm:"column:recency_boost"`
	SourceURI    string         `gorm:"column:source_uri;size:255"`
	SourceType   string         `gorm:"column:source_type;size:32"`
	FactType     string         `gorm:"column:fact_type;size:32;index"`
	FactCategory string         `gorm:"column:fact_category;size:32;index"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
	ExtractedAt  time.Time      `gorm:"column:extracted_at"`
	LastAccessed time.Time      `gorm:"column:last_accessed"`
	AccessCount  int            `gorm:"column:access_count"`
}

func (factRecord) TableName() string { return "facts" }

// MySQLStore is the FactStore implementation backed by MySQL through GORM.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates the store and migrates the facts table.
func NewMySQLStore(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&factRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate facts table: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// SaveFacts validates and upserts a batch of facts.
func (s *MySQLStore) SaveFacts(ctx context.Context, facts []*models.Fact) error {
	for _, fact := range facts {
		if err := fact.Validate(); err != nil {
			return fmt.Errorf("invalid fact %s: %w", fact.ID, err)
		}
		record, err := toRecord(fact)
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
			return fmt.Errorf("failed to save fact %s: %w", fact.ID, err)
		}
	}
	return nil
}

// QueryFacts returns facts matching the filter, ordered and limited per the
// query. Stored scores that drifted from their components are recomputed on
// the way out rather than trusted.
func (s *MySQLStore) QueryFacts(ctx context.Context, query models.FactQuery) ([]*models.Fact, error) {
	query.Normalize()

	tx := s.db.WithContext(ctx).Model(&factRecord{}).
		Where("ciar_score >= ?", query.MinCIARScore)
	if query.SessionID != "" {
		tx = tx.Where("session_id = ?", query.SessionID)
	}
	if len(query.FactTypes) > 0 {
		tx = tx.Where("fact_type IN ?", query.FactTypes)
	}
	if len(query.FactCategories) > 0 {
		tx = tx.Where("fact_category IN ?", query.FactCategories)
	}

	// Only known ordering keys reach the SQL layer.
	switch query.OrderBy {
	case "extracted_at DESC":
		tx = tx.Order("extracted_at DESC")
	default:
		tx = tx.Order("ciar_score DESC")
	}

	var records []factRecord
	if err := tx.Limit(query.Limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}

	facts := make([]*models.Fact, 0, len(records))
	for i := range records {
		fact, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		fact.EnsureScore()
		facts = append(facts, fact)
	}
	return facts, nil
}

func toRecord(fact *models.Fact) (*factRecord, error) {
	var metadata datatypes.JSON
	if len(fact.Metadata) > 0 {
		raw, err := json.Marshal(fact.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize fact metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}
	return &factRecord{
		FactID:       fact.ID,
		SessionID:    fact.SessionID,
		Content:      fact.Content,
		CIARScore:    fact.CIARScore,
		Certainty:    fact.Certainty,
		Impact:       fact.Impact,
		AgeDecay:     fact.AgeDecay,
		RecencyBoost: fact.RecencyBoost,
		SourceURI:    fact.SourceURI,
		SourceType:   fact.SourceType,
		FactType:     string(fact.FactType),
		FactCategory: string(fact.FactCategory),
		Metadata:     metadata,
		ExtractedAt:  fact.ExtractedAt,
		LastAccessed: fact.LastAccessed,
		AccessCount:  fact.AccessCount,
	}, nil
}

func fromRecord(record *factRecord) (*models.Fact, error) {
	var metadata map[string]interface{}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to parse fact metadata: %w", err)
		}
	}
	return &models.Fact{
		ID:           record.FactID,
		SessionID:    record.SessionID,
		Content:      record.Content,
		CIARScore:    record.CIARScore,
		Certainty:    record.Certainty,
		Impact:       record.Impact,
		AgeDecay:     record.AgeDecay,
		RecencyBoost: record.RecencyBoost,
		SourceURI:    record.SourceURI,
		SourceType:   record.SourceType,
		FactType:     models.FactType(record.FactType),
		FactCategory: models.FactCategory(record.FactCategory),
		Metadata:     metadata,
		ExtractedAt:  record.ExtractedAt,
		LastAccessed: record.LastAccessed,
		AccessCount:  record.AccessCount,
	}, nil
}

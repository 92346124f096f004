package service

import (
	"context"
	"fmt"

	"mnemo/internal/memory/metrics"
	"mnemo/internal/memory/segmenter"
	"mnemo/internal/memory/state"
	"mnemo/internal/memory/store"
	"mnemo/internal/models"
	"mnemo/pkg/logger"
)

// highImpactThreshold marks segments important enough to open a shared
// workspace event for other agents.
const highImpactThreshold = 0.7

// MemoryService orchestrates the conversational memory pipeline: batches of
// turns are segmented into topics, topics become scored facts persisted
// across the knowledge stores, and promotion candidates land in the agent's
// personal state.
type MemoryService struct {
	segmenter *segmenter.Segmenter
	facts     store.FactStore
	stores    *store.Manager
	state     *state.Store
	metrics   *metrics.Collector
	cache     *recallCache
	logger    *logger.Logger
}

// New wires the memory service over its collaborators.
func New(seg *segmenter.Segmenter, facts store.FactStore, stores *store.Manager, st *state.Store, collector *metrics.Collector, log *logger.Logger) *MemoryService {
	return &MemoryService{
		segmenter: seg,
		facts:     facts,
		stores:    stores,
		state:     st,
		metrics:   collector,
		cache:     newRecallCache(),
		logger:    log,
	}
}

// MaxBatchTurns reports the largest batch the segmenter will retain.
func (m *MemoryService) MaxBatchTurns() int {
	return m.segmenter.MaxTurns()
}

// ProcessBatch runs one batch of conversation turns through segmentation and
// persists the results. Persistence failures in individual stores are logged
// and do not abort the batch; the relational store is authoritative and its
// failure is returned.
func (m *MemoryService) ProcessBatch(ctx context.Context, agentID, sessionID string, turns []models.Turn) error {
	timer := m.metrics.Start("process_batch", map[string]interface{}{
		"agent_id":   agentID,
		"session_id": sessionID,
		"turns":      len(turns),
	})

	segments := m.segmenter.SegmentTurns(ctx, turns, map[string]interface{}{
		"agent_id":   agentID,
		"session_id": sessionID,
	})
	if len(segments) == 0 {
		timer.Done(nil)
		return nil
	}

	facts := make([]*models.Fact, 0, len(segments))
	for _, seg := range segments {
		facts = append(facts, factFromSegment(sessionID, seg))
	}

	if err := m.facts.SaveFacts(ctx, facts); err != nil {
		timer.Done(err)
		return fmt.Errorf("failed to persist facts: %w", err)
	}

	// Secondary indexes are best effort. A cold vector or search index can
	// be rebuilt from the relational store.
	if err := m.stores.Vector.AddFacts(ctx, facts); err != nil {
		m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).
			Warn("failed to index facts in vector store")
	}
	if err := m.stores.Search.IndexFacts(ctx, facts); err != nil {
		m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).
			Warn("failed to index facts in search store")
	}

	relations := make([]*models.Relation, 0, len(segments))
	for _, seg := range segments {
		relations = append(relations, &models.Relation{
			Source:    agentID,
			Target:    seg.Topic,
			Type:      "DISCUSSED",
			SessionID: sessionID,
		})
	}
	if err := m.stores.Graph.AddRelations(ctx, relations); err != nil {
		m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).
			Warn("failed to record relations in graph store")
	}

	if err := m.recordPromotionCandidates(ctx, agentID, segments); err != nil {
		m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "state_error"}).
			Warn("failed to record promotion candidates")
	}

	m.openHighImpactEvents(ctx, agentID, sessionID, segments)

	m.logger.WithPayload(map[string]interface{}{
		"session_id": sessionID,
		"segments":   len(segments),
		"facts":      len(facts),
	}).Info("conversation batch processed")

	timer.Done(nil)
	return nil
}

// Recall retrieves relevant facts for a session, preferring semantic
// similarity and falling back to full-text search when the vector store
// is unavailable or empty. Results are cached briefly per session/query.
func (m *MemoryService) Recall(ctx context.Context, sessionID, query string, topK int) ([]*models.Fact, error) {
	timer := m.metrics.Start("recall", map[string]interface{}{"session_id": sessionID})

	key := recallKey(sessionID, query, topK)
	if facts, ok := m.cache.get(key); ok {
		timer.Done(nil)
		return facts, nil
	}

	facts, err := m.stores.Query(ctx, store.StoreTypeVector, store.QueryParams{
		SessionID: sessionID,
		Query:     query,
		TopK:      topK,
	})
	if err != nil || len(facts) == 0 {
		if err != nil {
			m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).
				Warn("vector recall failed, falling back to text search")
		}
		facts, err = m.stores.Query(ctx, store.StoreTypeSearch, store.QueryParams{
			Query: query,
			TopK:  topK,
		})
		if err != nil {
			timer.Done(err)
			return nil, fmt.Errorf("recall failed: %w", err)
		}
	}

	m.cache.put(key, facts)
	timer.Done(nil)
	return facts, nil
}

// QueryFacts runs a filtered read against the relational fact store.
func (m *MemoryService) QueryFacts(ctx context.Context, query models.FactQuery) ([]*models.Fact, error) {
	return m.facts.QueryFacts(ctx, query)
}

// factFromSegment promotes a topic segment into a scored fact. The segment's
// certainty and impact priors carry over; decay and recency start fresh.
func factFromSegment(sessionID string, seg *models.TopicSegment) *models.Fact {
	fact := models.NewFact(sessionID, seg.Summary)
	fact.Certainty = seg.Certainty
	fact.Impact = seg.Impact
	fact.CIARScore = models.ComputeCIAR(fact.Certainty, fact.Impact, fact.AgeDecay, fact.RecencyBoost)
	fact.SourceURI = "segment:" + seg.SegmentID
	fact.FactType = models.FactTypeEvent
	fact.Metadata = map[string]interface{}{
		"topic":      seg.Topic,
		"key_points": seg.KeyPoints,
	}
	return fact
}

// recordPromotionCandidates writes segment previews into the agent's
// personal state so a later consolidation pass can decide what to keep
// long term.
func (m *MemoryService) recordPromotionCandidates(ctx context.Context, agentID string, segments []*models.TopicSegment) error {
	st, err := m.state.GetPersonalState(ctx, agentID)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		st.PromotionCandidates[seg.SegmentID] = map[string]interface{}{
			"topic":     seg.Topic,
			"certainty": seg.Certainty,
			"impact":    seg.Impact,
			"ciar":      models.ComputeCIAR(seg.Certainty, seg.Impact, 1.0, 1.0),
		}
	}
	return m.state.UpdatePersonalState(ctx, st)
}

// openHighImpactEvents creates a shared workspace event for every segment
// whose impact crosses the threshold, so other agents get notified of
// urgent topics. Failures are logged per segment.
func (m *MemoryService) openHighImpactEvents(ctx context.Context, agentID, sessionID string, segments []*models.TopicSegment) {
	for _, seg := range segments {
		if seg.Impact < highImpactThreshold {
			continue
		}
		event := models.NewSharedWorkspaceState()
		event.ParticipatingAgents = []string{agentID}
		event.SharedData = map[string]interface{}{
			"topic":      seg.Topic,
			"summary":    seg.Summary,
			"session_id": sessionID,
			"impact":     seg.Impact,
		}
		if err := m.state.UpdateSharedState(ctx, event); err != nil {
			m.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "state_error"}).
				Warn(fmt.Sprintf("failed to open shared event for topic '%s'", seg.Topic))
			continue
		}
		m.logger.WithPayload(map[string]interface{}{
			"event_id": event.EventID,
			"topic":    seg.Topic,
			"impact":   seg.Impact,
		}).Info("opened shared workspace event for high-impact topic")
	}
}

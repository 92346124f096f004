package metrics

import (
	"errors"
	"testing"

	"mnemo/pkg/logger"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	c := NewCollector(logger.New("metrics_test", "", ""))

	c.Start("segment_batch", nil).Done(nil)
	c.Start("segment_batch", nil).Done(nil)
	c.Start("segment_batch", nil).Done(errors.New("boom"))
	c.Start("recall", map[string]interface{}{"session_id": "s1"}).Done(nil)

	report := c.Report()
	if len(report) != 2 {
		t.Fatalf("expected 2 operations in the report, got %d", len(report))
	}

	byOp := make(map[string]Snapshot)
	for _, s := range report {
		byOp[s.Operation] = s
	}

	seg, ok := byOp["segment_batch"]
	if !ok {
		t.Fatal("segment_batch missing from report")
	}
	if seg.Count != 3 {
		t.Errorf("expected 3 segment_batch operations, got %d", seg.Count)
	}
	if seg.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", seg.Failures)
	}

	if recall := byOp["recall"]; recall.Count != 1 || recall.Failures != 0 {
		t.Errorf("unexpected recall counters: %+v", recall)
	}
}

func TestCollectorEmptyReport(t *testing.T) {
	c := NewCollector(logger.New("metrics_test", "", ""))
	if report := c.Report(); len(report) != 0 {
		t.Errorf("expected an empty report, got %d entries", len(report))
	}
}

package audit

import (
	"context"
	"testing"

	"github.com/voxalytics/voxalytics/pkg/agent"
)

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store
	if err := s.Record(context.Background(), agent.RunLog{SessionID: "s"}); err != nil {
		t.Fatalf("nil store Record returned error: %v", err)
	}
	if runs, err := s.RecentRuns(context.Background(), 5); err != nil || runs != nil {
		t.Fatalf("nil store RecentRuns: %v %v", runs, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil store Close returned error: %v", err)
	}
}

func TestEmptyStoreIsNoOp(t *testing.T) {
	s := &Store{}
	if err := s.Record(context.Background(), agent.RunLog{}); err != nil {
		t.Fatalf("empty store Record returned error: %v", err)
	}
}

package idempotency

import (
	"context"
	"fmt"
	"sync"
)

type memKey struct {
	tenantID       uint
	notificationID string
}

type memRecord struct {
	state   string // processing, committed, released
	outcome string
}

// MemoryStore is an in-process Store used by tests and single-node setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memKey]*memRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memKey]*memRecord)}
}

func (s *MemoryStore) TryBegin(_ context.Context, tenantID uint, notificationID, _, _ string) (Begin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey{tenantID, notificationID}
	rec, ok := s.records[key]
	if !ok {
		s.records[key] = &memRecord{state: "processing"}
		return Begin{State: Acquired}, nil
	}
	switch rec.state {
	case "committed":
		return Begin{State: AlreadyProcessed, Outcome: rec.outcome}, nil
	case "released":
		rec.state = "processing"
		return Begin{State: Acquired}, nil
	default:
		return Begin{State: InFlight}, nil
	}
}

func (s *MemoryStore) Commit(_ context.Context, tenantID uint, notificationID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[memKey{tenantID, notificationID}]
	if !ok {
		return fmt.Errorf("idempotency commit: no record for tenant %d notification %s", tenantID, notificationID)
	}
	rec.state = "committed"
	rec.outcome = outcome
	return nil
}

func (s *MemoryStore) Release(_ context.Context, tenantID uint, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[memKey{tenantID, notificationID}]
	if ok && rec.state == "processing" {
		rec.state = "released"
	}
	return nil
}

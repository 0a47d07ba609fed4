package audit

import (
	"sync"

	"github.com/palisade-ai/palisade/pkg/models"
)

// DefaultMaxEntries bounds the in-memory trail when no limit is configured.
const DefaultMaxEntries = 1000

// MemoryStore keeps the audit trail in process memory with oldest-first
// eviction once the retention bound is exceeded.
type MemoryStore struct {
	mu      sync.Mutex
	max     int
	records []*models.AuditRecord
	byID    map[string][]*models.AuditRecord
}

// NewMemoryStore creates a MemoryStore retaining at most max records.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &MemoryStore{
		max:  max,
		byID: make(map[string][]*models.AuditRecord),
	}
}

// Append stores a copy of rec and enforces the retention bound.
func (s *MemoryStore) Append(rec models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &rec
	s.records = append(s.records, r)
	s.byID[r.CorrelationID] = append(s.byID[r.CorrelationID], r)

	if len(s.records) > s.max {
		oldest := s.records[0]
		s.records = s.records[1:]
		// The oldest record overall is also the oldest for its id.
		ids := s.byID[oldest.CorrelationID]
		if len(ids) <= 1 {
			delete(s.byID, oldest.CorrelationID)
		} else {
			s.byID[oldest.CorrelationID] = ids[1:]
		}
	}
	return nil
}

// Recent returns up to n records, most recent first.
func (s *MemoryStore) Recent(n int) ([]models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.records) {
		n = len(s.records)
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]models.AuditRecord, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, *s.records[i])
	}
	return out, nil
}

// ByCorrelationID returns all records for id in append order.
func (s *MemoryStore) ByCorrelationID(id string) ([]models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byID[id]
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]models.AuditRecord, 0, len(ids))
	for _, r := range ids {
		out = append(out, *r)
	}
	return out, nil
}

// Len reports the number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

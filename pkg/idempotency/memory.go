package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type recordKey struct {
	commandType string
	requestID   string
}

// MemoryStore is a Store held in process memory. It is safe for concurrent use
// but only deduplicates within a single process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[recordKey]Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, commandType, requestID string, staleAfter time.Duration) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := recordKey{commandType, requestID}

	rec, ok := s.records[key]
	switch {
	case !ok:
		rec = Record{
			CommandType: commandType,
			RequestID:   requestID,
			State:       StateInProgress,
			ClaimToken:  uuid.New(),
			CreatedAt:   now,
			ClaimedAt:   now,
		}
	case rec.State == StateInProgress && now.Sub(rec.ClaimedAt) > staleAfter:
		rec.ClaimToken = uuid.New()
		rec.ClaimedAt = now
	default:
		return rec, false, nil
	}

	s.records[key] = rec
	return rec, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, claim Record, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{claim.CommandType, claim.RequestID}
	rec, ok := s.records[key]
	if !ok || rec.State != StateInProgress || rec.ClaimToken != claim.ClaimToken {
		return ErrClaimLost
	}

	rec.State = StateCompleted
	rec.Result = append([]byte(nil), result...)
	rec.CompletedAt = s.now().UTC()
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Release(_ context.Context, claim Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{claim.CommandType, claim.RequestID}
	if rec, ok := s.records[key]; ok && rec.State == StateInProgress && rec.ClaimToken == claim.ClaimToken {
		delete(s.records, key)
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

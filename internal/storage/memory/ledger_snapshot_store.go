package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

// LedgerSnapshotStore is an in-memory implementation of storage.LedgerSnapshotStore.
type LedgerSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LedgerSnapshot // keyed by (ledger_id, created_at)
}

// NewLedgerSnapshotStore creates a new in-memory snapshot store.
func NewLedgerSnapshotStore() *LedgerSnapshotStore {
	return &LedgerSnapshotStore{
		data: make(map[string]*domain.LedgerSnapshot),
	}
}

// snapshotKey generates a unique key for a snapshot.
func snapshotKey(ledgerID string, createdAt int64) string {
	return fmt.Sprintf("%s|%d", ledgerID, createdAt)
}

// Save appends a snapshot. Returns ErrDuplicateKey if (ledger_id, created_at) exists.
func (s *LedgerSnapshotStore) Save(_ context.Context, snap *domain.LedgerSnapshot) error {
	if snap == nil || snap.LedgerID == "" || snap.CreatedAt <= 0 || len(snap.State) == 0 {
		return storage.ErrInvalidInput
	}

	key := snapshotKey(snap.LedgerID, snap.CreatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copySnapshot(snap)
	return nil
}

// Latest retrieves the most recent snapshot for a ledger. Returns ErrNotFound
// when the ledger has none.
func (s *LedgerSnapshotStore) Latest(_ context.Context, ledgerID string) (*domain.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.LedgerSnapshot
	for _, snap := range s.data {
		if snap.LedgerID != ledgerID {
			continue
		}
		if latest == nil || snap.CreatedAt > latest.CreatedAt {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	return copySnapshot(latest), nil
}

// List retrieves all snapshots for a ledger, ordered by created_at ASC.
func (s *LedgerSnapshotStore) List(_ context.Context, ledgerID string) ([]*domain.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerSnapshot
	for _, snap := range s.data {
		if snap.LedgerID == ledgerID {
			result = append(result, copySnapshot(snap))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// copySnapshot deep-copies a snapshot so callers cannot mutate stored state.
func copySnapshot(snap *domain.LedgerSnapshot) *domain.LedgerSnapshot {
	copy := *snap
	copy.State = append([]byte(nil), snap.State...)
	return &copy
}

var _ storage.LedgerSnapshotStore = (*LedgerSnapshotStore)(nil)

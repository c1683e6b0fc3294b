package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

// TaxableEventStore is an in-memory implementation of storage.TaxableEventStore.
type TaxableEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TaxableEvent // keyed by event_id
}

// NewTaxableEventStore creates a new in-memory taxable event store.
func NewTaxableEventStore() *TaxableEventStore {
	return &TaxableEventStore{
		data: make(map[string]*domain.TaxableEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *TaxableEventStore) Insert(_ context.Context, e *domain.TaxableEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[e.EventID] = &copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TaxableEventStore) InsertBulk(_ context.Context, events []*domain.TaxableEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		copy := *e
		s.data[e.EventID] = &copy
	}

	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *TaxableEventStore) GetByID(_ context.Context, eventID string) (*domain.TaxableEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *e
	return &copy, nil
}

// GetByTaxYear retrieves all events for a jurisdiction and tax year, ordered by timestamp ASC.
func (s *TaxableEventStore) GetByTaxYear(_ context.Context, jurisdiction, taxYear string) ([]*domain.TaxableEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TaxableEvent
	for _, e := range s.data {
		if e.Jurisdiction == jurisdiction && e.TaxYear == taxYear {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortByTimestamp(result)
	return result, nil
}

// GetByAsset retrieves a tax year's events for one asset, ordered by timestamp ASC.
func (s *TaxableEventStore) GetByAsset(_ context.Context, jurisdiction, taxYear, asset string) ([]*domain.TaxableEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.NormalizeAsset(asset)
	var result []*domain.TaxableEvent
	for _, e := range s.data {
		if e.Jurisdiction == jurisdiction && e.TaxYear == taxYear && e.Asset == key {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortByTimestamp(result)
	return result, nil
}

func sortByTimestamp(events []*domain.TaxableEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].EventID < events[j].EventID
	})
}

var _ storage.TaxableEventStore = (*TaxableEventStore)(nil)

package storage

import (
	"context"

	"crypto-tax-core/internal/domain"
)

// LedgerSnapshotStore provides access to ledger_snapshots storage.
// Snapshots are append-only: a ledger's history is a series of exports.
type LedgerSnapshotStore interface {
	// Save appends a snapshot. Returns ErrDuplicateKey if
	// (ledger_id, created_at) exists.
	Save(ctx context.Context, s *domain.LedgerSnapshot) error

	// Latest retrieves the most recent snapshot for a ledger.
	// Returns ErrNotFound when the ledger has none.
	Latest(ctx context.Context, ledgerID string) (*domain.LedgerSnapshot, error)

	// List retrieves all snapshots for a ledger, ordered by created_at ASC.
	List(ctx context.Context, ledgerID string) ([]*domain.LedgerSnapshot, error)
}

// TaxableEventStore provides access to taxable_events storage.
type TaxableEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.TaxableEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.TaxableEvent) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.TaxableEvent, error)

	// GetByTaxYear retrieves all events for a jurisdiction and tax year,
	// ordered by timestamp ASC.
	GetByTaxYear(ctx context.Context, jurisdiction, taxYear string) ([]*domain.TaxableEvent, error)

	// GetByAsset retrieves a tax year's events for one asset, ordered by
	// timestamp ASC.
	GetByAsset(ctx context.Context, jurisdiction, taxYear, asset string) ([]*domain.TaxableEvent, error)
}

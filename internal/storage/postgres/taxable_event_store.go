package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

// TaxableEventStore implements storage.TaxableEventStore using PostgreSQL.
type TaxableEventStore struct {
	pool *Pool
}

// NewTaxableEventStore creates a new TaxableEventStore.
func NewTaxableEventStore(pool *Pool) *TaxableEventStore {
	return &TaxableEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TaxableEventStore = (*TaxableEventStore)(nil)

const insertEventQuery = `
	INSERT INTO taxable_events (
		event_id, transaction_id, tax_year, jurisdiction, asset, exchange, timestamp,
		event_type, classification, income_category,
		proceeds, cost_basis, gross_gain, taxable_gain, income_amount, deductible_fee,
		discount_applied, personal_use, confidence, notes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
`

const selectEventColumns = `
	event_id, transaction_id, tax_year, jurisdiction, asset, exchange, timestamp,
	event_type, classification, income_category,
	proceeds, cost_basis, gross_gain, taxable_gain, income_amount, deductible_fee,
	discount_applied, personal_use, confidence, notes
`

func eventArgs(e *domain.TaxableEvent) []any {
	return []any{
		e.EventID, e.TransactionID, e.TaxYear, e.Jurisdiction, e.Asset, e.Exchange, e.Timestamp,
		string(e.EventType), string(e.Classification), string(e.IncomeCategory),
		e.Proceeds, e.CostBasis, e.GrossGain, e.TaxableGain, e.IncomeAmount, e.DeductibleFee,
		e.DiscountApplied, e.PersonalUse, e.Confidence, e.Notes,
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *TaxableEventStore) Insert(ctx context.Context, e *domain.TaxableEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertEventQuery, eventArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert taxable event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TaxableEventStore) InsertBulk(ctx context.Context, events []*domain.TaxableEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertEventQuery, eventArgs(e)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert taxable event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *TaxableEventStore) GetByID(ctx context.Context, eventID string) (*domain.TaxableEvent, error) {
	query := `SELECT ` + selectEventColumns + ` FROM taxable_events WHERE event_id = $1`

	row := s.pool.QueryRow(ctx, query, eventID)
	e, err := scanEventRow(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get taxable event by id: %w", err)
	}
	return e, nil
}

// GetByTaxYear retrieves all events for a jurisdiction and tax year, ordered by timestamp ASC.
func (s *TaxableEventStore) GetByTaxYear(ctx context.Context, jurisdiction, taxYear string) ([]*domain.TaxableEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM taxable_events
		WHERE jurisdiction = $1 AND tax_year = $2
		ORDER BY timestamp ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, jurisdiction, taxYear)
	if err != nil {
		return nil, fmt.Errorf("get taxable events by tax year: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByAsset retrieves a tax year's events for one asset, ordered by timestamp ASC.
func (s *TaxableEventStore) GetByAsset(ctx context.Context, jurisdiction, taxYear, asset string) ([]*domain.TaxableEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM taxable_events
		WHERE jurisdiction = $1 AND tax_year = $2 AND asset = $3
		ORDER BY timestamp ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, jurisdiction, taxYear, domain.NormalizeAsset(asset))
	if err != nil {
		return nil, fmt.Errorf("get taxable events by asset: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEventRow scans a single row into a TaxableEvent.
func scanEventRow(row pgx.Row) (*domain.TaxableEvent, error) {
	var e domain.TaxableEvent
	var eventType, classification, incomeCategory string

	err := row.Scan(
		&e.EventID, &e.TransactionID, &e.TaxYear, &e.Jurisdiction, &e.Asset, &e.Exchange, &e.Timestamp,
		&eventType, &classification, &incomeCategory,
		&e.Proceeds, &e.CostBasis, &e.GrossGain, &e.TaxableGain, &e.IncomeAmount, &e.DeductibleFee,
		&e.DiscountApplied, &e.PersonalUse, &e.Confidence, &e.Notes,
	)
	if err != nil {
		return nil, err
	}
	e.EventType = domain.TaxEventType(eventType)
	e.Classification = domain.Classification(classification)
	e.IncomeCategory = domain.IncomeCategory(incomeCategory)
	return &e, nil
}

// scanEvents scans multiple rows into a slice of TaxableEvent.
func scanEvents(rows pgx.Rows) ([]*domain.TaxableEvent, error) {
	var events []*domain.TaxableEvent

	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan taxable event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxable event rows: %w", err)
	}

	return events, nil
}

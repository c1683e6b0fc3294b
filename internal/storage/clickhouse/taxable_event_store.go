package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

// TaxableEventStore implements storage.TaxableEventStore using ClickHouse.
// MergeTree does not enforce uniqueness at insert time, so append-only
// semantics are enforced with explicit existence checks before insert.
type TaxableEventStore struct {
	conn *Conn
}

// NewTaxableEventStore creates a new TaxableEventStore.
func NewTaxableEventStore(conn *Conn) *TaxableEventStore {
	return &TaxableEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TaxableEventStore = (*TaxableEventStore)(nil)

const insertEventQuery = `
	INSERT INTO taxable_events (
		event_id, transaction_id, tax_year, jurisdiction, asset, exchange, timestamp,
		event_type, classification, income_category,
		proceeds, cost_basis, gross_gain, taxable_gain, income_amount, deductible_fee,
		discount_applied, personal_use, confidence, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectEventColumns = `
	event_id, transaction_id, tax_year, jurisdiction, asset, exchange, timestamp,
	event_type, classification, income_category,
	proceeds, cost_basis, gross_gain, taxable_gain, income_amount, deductible_fee,
	discount_applied, personal_use, confidence, notes
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *TaxableEventStore) Insert(ctx context.Context, e *domain.TaxableEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if err := s.conn.Exec(ctx, insertEventQuery, eventArgs(e)...); err != nil {
		return fmt.Errorf("insert taxable event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TaxableEventStore) InsertBulk(ctx context.Context, events []*domain.TaxableEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO taxable_events (
			event_id, transaction_id, tax_year, jurisdiction, asset, exchange, timestamp,
			event_type, classification, income_category,
			proceeds, cost_basis, gross_gain, taxable_gain, income_amount, deductible_fee,
			discount_applied, personal_use, confidence, notes
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(eventArgs(e)...); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *TaxableEventStore) GetByID(ctx context.Context, eventID string) (*domain.TaxableEvent, error) {
	query := `SELECT ` + selectEventColumns + ` FROM taxable_events FINAL WHERE event_id = ? LIMIT 1`

	rows, err := s.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("get taxable event by id: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// GetByTaxYear retrieves all events for a jurisdiction and tax year, ordered by timestamp ASC.
func (s *TaxableEventStore) GetByTaxYear(ctx context.Context, jurisdiction, taxYear string) ([]*domain.TaxableEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM taxable_events FINAL
		WHERE jurisdiction = ? AND tax_year = ?
		ORDER BY timestamp ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, jurisdiction, taxYear)
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
		FROM taxable_events FINAL
		WHERE jurisdiction = ? AND tax_year = ? AND asset = ?
		ORDER BY timestamp ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, jurisdiction, taxYear, domain.NormalizeAsset(asset))
	if err != nil {
		return nil, fmt.Errorf("get taxable events by asset: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// exists reports whether an event_id is already stored.
func (s *TaxableEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM taxable_events WHERE event_id = ?`, eventID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func eventArgs(e *domain.TaxableEvent) []any {
	return []any{
		e.EventID, e.TransactionID, e.TaxYear, e.Jurisdiction, e.Asset, e.Exchange, e.Timestamp,
		string(e.EventType), string(e.Classification), string(e.IncomeCategory),
		e.Proceeds, e.CostBasis, e.GrossGain, e.TaxableGain, e.IncomeAmount, e.DeductibleFee,
		boolToUInt8(e.DiscountApplied), boolToUInt8(e.PersonalUse), e.Confidence, e.Notes,
	}
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// scanEvents scans query rows into TaxableEvent values.
func scanEvents(rows driver.Rows) ([]*domain.TaxableEvent, error) {
	var events []*domain.TaxableEvent

	for rows.Next() {
		var e domain.TaxableEvent
		var eventType, classification, incomeCategory string
		var discountApplied, personalUse uint8

		err := rows.Scan(
			&e.EventID, &e.TransactionID, &e.TaxYear, &e.Jurisdiction, &e.Asset, &e.Exchange, &e.Timestamp,
			&eventType, &classification, &incomeCategory,
			&e.Proceeds, &e.CostBasis, &e.GrossGain, &e.TaxableGain, &e.IncomeAmount, &e.DeductibleFee,
			&discountApplied, &personalUse, &e.Confidence, &e.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan taxable event row: %w", err)
		}
		e.EventType = domain.TaxEventType(eventType)
		e.Classification = domain.Classification(classification)
		e.IncomeCategory = domain.IncomeCategory(incomeCategory)
		e.DiscountApplied = discountApplied == 1
		e.PersonalUse = personalUse == 1

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxable event rows: %w", err)
	}

	return events, nil
}

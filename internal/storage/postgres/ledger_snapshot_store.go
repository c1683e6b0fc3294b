package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

// LedgerSnapshotStore implements storage.LedgerSnapshotStore using PostgreSQL.
type LedgerSnapshotStore struct {
	pool *Pool
}

// NewLedgerSnapshotStore creates a new LedgerSnapshotStore.
func NewLedgerSnapshotStore(pool *Pool) *LedgerSnapshotStore {
	return &LedgerSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerSnapshotStore = (*LedgerSnapshotStore)(nil)

// Save appends a snapshot. Returns ErrDuplicateKey if (ledger_id, created_at) exists.
func (s *LedgerSnapshotStore) Save(ctx context.Context, snap *domain.LedgerSnapshot) error {
	if snap == nil || snap.LedgerID == "" || snap.CreatedAt <= 0 || len(snap.State) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ledger_snapshots (ledger_id, method, created_at, state)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.LedgerID,
		string(snap.Method),
		snap.CreatedAt,
		snap.State,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot for a ledger. Returns ErrNotFound
// when the ledger has none.
func (s *LedgerSnapshotStore) Latest(ctx context.Context, ledgerID string) (*domain.LedgerSnapshot, error) {
	query := `
		SELECT ledger_id, method, created_at, state
		FROM ledger_snapshots
		WHERE ledger_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var snap domain.LedgerSnapshot
	var method string
	err := s.pool.QueryRow(ctx, query, ledgerID).Scan(
		&snap.LedgerID,
		&method,
		&snap.CreatedAt,
		&snap.State,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest ledger snapshot: %w", err)
	}
	snap.Method = domain.CostBasisMethod(method)
	return &snap, nil
}

// List retrieves all snapshots for a ledger, ordered by created_at ASC.
func (s *LedgerSnapshotStore) List(ctx context.Context, ledgerID string) ([]*domain.LedgerSnapshot, error) {
	query := `
		SELECT ledger_id, method, created_at, state
		FROM ledger_snapshots
		WHERE ledger_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list ledger snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows into a slice of LedgerSnapshot.
func scanSnapshots(rows pgx.Rows) ([]*domain.LedgerSnapshot, error) {
	var snapshots []*domain.LedgerSnapshot

	for rows.Next() {
		var snap domain.LedgerSnapshot
		var method string

		err := rows.Scan(
			&snap.LedgerID,
			&method,
			&snap.CreatedAt,
			&snap.State,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger snapshot row: %w", err)
		}
		snap.Method = domain.CostBasisMethod(method)

		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger snapshot rows: %w", err)
	}

	return snapshots, nil
}

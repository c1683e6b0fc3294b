package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

func testEvent(id string, ts int64) *domain.TaxableEvent {
	return &domain.TaxableEvent{
		EventID:         id,
		TransactionID:   "tx-" + id,
		TaxYear:         "2024-2025",
		Jurisdiction:    "AU",
		Asset:           "BTC",
		Exchange:        "binance",
		Timestamp:       ts,
		EventType:       domain.EventDisposal,
		Classification:  domain.ClassCapital,
		Proceeds:        60000,
		CostBasis:       50000,
		GrossGain:       10000,
		TaxableGain:     5000,
		DiscountApplied: true,
		Confidence:      1.0,
	}
}

func TestTaxableEventStore_InsertAndGetByID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTaxableEventStore(conn)

	require.NoError(t, store.Insert(ctx, testEvent("ev-1", 1700000001000)))

	got, err := store.GetByID(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-ev-1", got.TransactionID)
	assert.Equal(t, domain.EventDisposal, got.EventType)
	assert.InDelta(t, 5000, got.TaxableGain, 1e-9)
	assert.True(t, got.DiscountApplied)
	assert.False(t, got.PersonalUse)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTaxableEventStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTaxableEventStore(conn)

	require.NoError(t, store.Insert(ctx, testEvent("ev-1", 1700000001000)))
	assert.ErrorIs(t, store.Insert(ctx, testEvent("ev-1", 1700000002000)), storage.ErrDuplicateKey)

	// Intra-batch duplicates are rejected before anything is sent.
	batch := []*domain.TaxableEvent{testEvent("ev-2", 1), testEvent("ev-2", 1)}
	assert.ErrorIs(t, store.InsertBulk(ctx, batch), storage.ErrDuplicateKey)
}

func TestTaxableEventStore_GetByTaxYear(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTaxableEventStore(conn)

	otherYear := testEvent("ev-3", 1600000000000)
	otherYear.TaxYear = "2023-2024"
	require.NoError(t, store.InsertBulk(ctx, []*domain.TaxableEvent{
		testEvent("ev-2", 1700000002000),
		testEvent("ev-1", 1700000001000),
		otherYear,
	}))

	events, err := store.GetByTaxYear(ctx, "AU", "2024-2025")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-1", events[0].EventID, "events must be ordered by timestamp")
	assert.Equal(t, "ev-2", events[1].EventID)
}

func TestTaxableEventStore_GetByAsset(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTaxableEventStore(conn)

	eth := testEvent("ev-2", 1700000002000)
	eth.Asset = "ETH"
	require.NoError(t, store.InsertBulk(ctx, []*domain.TaxableEvent{
		testEvent("ev-1", 1700000001000),
		eth,
	}))

	events, err := store.GetByAsset(ctx, "AU", "2024-2025", "eth")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-2", events[0].EventID)
}

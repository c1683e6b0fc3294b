package memory

import (
	"context"
	"errors"
	"testing"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/storage"
)

func snapshot(ledgerID string, createdAt int64) *domain.LedgerSnapshot {
	return &domain.LedgerSnapshot{
		LedgerID:  ledgerID,
		Method:    domain.MethodFIFO,
		CreatedAt: createdAt,
		State:     []byte(`{"version":1}`),
	}
}

func TestLedgerSnapshotStore_SaveAndLatest(t *testing.T) {
	store := NewLedgerSnapshotStore()
	ctx := context.Background()

	for _, at := range []int64{1000, 3000, 2000} {
		if err := store.Save(ctx, snapshot("ledger-1", at)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	latest, err := store.Latest(ctx, "ledger-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.CreatedAt != 3000 {
		t.Errorf("Latest.CreatedAt = %d, want 3000", latest.CreatedAt)
	}

	if _, err := store.Latest(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLedgerSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewLedgerSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, snapshot("ledger-1", 1000)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, snapshot("ledger-1", 1000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	// Same instant on a different ledger is fine.
	if err := store.Save(ctx, snapshot("ledger-2", 1000)); err != nil {
		t.Errorf("Save failed for second ledger: %v", err)
	}
}

func TestLedgerSnapshotStore_List(t *testing.T) {
	store := NewLedgerSnapshotStore()
	ctx := context.Background()

	for _, at := range []int64{3000, 1000, 2000} {
		if err := store.Save(ctx, snapshot("ledger-1", at)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.Save(ctx, snapshot("other", 500)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list, err := store.List(ctx, "ledger-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(list))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if list[i].CreatedAt != want {
			t.Errorf("list[%d].CreatedAt = %d, want %d", i, list[i].CreatedAt, want)
		}
	}
}

func TestLedgerSnapshotStore_InvalidInput(t *testing.T) {
	store := NewLedgerSnapshotStore()
	ctx := context.Background()

	cases := []*domain.LedgerSnapshot{
		nil,
		{Method: domain.MethodFIFO, CreatedAt: 1, State: []byte("x")},
		{LedgerID: "l", Method: domain.MethodFIFO, State: []byte("x")},
		{LedgerID: "l", Method: domain.MethodFIFO, CreatedAt: 1},
	}
	for i, snap := range cases {
		if err := store.Save(ctx, snap); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestLedgerSnapshotStore_ReturnsCopies(t *testing.T) {
	store := NewLedgerSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, snapshot("ledger-1", 1000)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, _ := store.Latest(ctx, "ledger-1")
	got.State[0] = 'X'

	again, _ := store.Latest(ctx, "ledger-1")
	if again.State[0] != '{' {
		t.Errorf("Stored state mutated through a returned copy")
	}
}

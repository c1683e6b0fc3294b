package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"crypto-tax-core/internal/domain"
)

// snapshotVersion guards the on-disk format. This is the only on-disk
// format the core defines; it must round-trip exactly.
const snapshotVersion = 1

// snapshot is the serialized ledger state: asset → lot array, ISO-8601
// dates, numeric amounts.
type snapshot struct {
	Version int                      `json:"version"`
	Method  domain.CostBasisMethod   `json:"method"`
	Assets  map[string][]snapshotLot `json:"assets"`
}

type snapshotLot struct {
	Date            string  `json:"date"`
	Amount          float64 `json:"amount"`
	UnitPrice       float64 `json:"unitPrice"`
	RemainingAmount float64 `json:"remainingAmount"`
	TransactionID   string  `json:"transactionId,omitempty"`
}

// ExportState serializes the entire per-asset lot map, exhausted lots
// included, for restart-safe incremental ledger maintenance.
func (l *Ledger) ExportState() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := snapshot{
		Version: snapshotVersion,
		Method:  l.method,
		Assets:  make(map[string][]snapshotLot, len(l.lots)),
	}
	for asset, lots := range l.lots {
		serialized := make([]snapshotLot, 0, len(lots))
		for _, lot := range lots {
			serialized = append(serialized, snapshotLot{
				Date:            lotDate(lot.Date).Format(time.RFC3339Nano),
				Amount:          lot.Amount,
				UnitPrice:       lot.UnitPrice,
				RemainingAmount: lot.RemainingAmount,
				TransactionID:   lot.TransactionID,
			})
		}
		snap.Assets[asset] = serialized
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("export ledger state: %w", err)
	}
	return data, nil
}

// ImportState replaces the ledger's entire state with the snapshot.
// All-or-nothing: any parse or validation failure leaves existing state
// untouched and returns an error wrapping ErrCorruptSnapshot.
func (l *Ledger) ImportState(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unknown version %d", ErrCorruptSnapshot, snap.Version)
	}
	switch snap.Method {
	case domain.MethodFIFO, domain.MethodSpecificID:
	default:
		return fmt.Errorf("%w: unknown method %q", ErrCorruptSnapshot, snap.Method)
	}

	// Materialize and validate everything before touching ledger state.
	restored := make(map[string][]*domain.AcquisitionLot, len(snap.Assets))
	for asset, lots := range snap.Assets {
		if asset != domain.NormalizeAsset(asset) {
			return fmt.Errorf("%w: asset key %q not normalized", ErrCorruptSnapshot, asset)
		}
		parsed := make([]*domain.AcquisitionLot, 0, len(lots))
		var prev int64
		for i, lot := range lots {
			date, err := time.Parse(time.RFC3339Nano, lot.Date)
			if err != nil {
				return fmt.Errorf("%w: %s lot %d date %q", ErrCorruptSnapshot, asset, i, lot.Date)
			}
			if lot.Amount < 0 || lot.UnitPrice < 0 || lot.RemainingAmount < 0 {
				return fmt.Errorf("%w: %s lot %d has negative value", ErrCorruptSnapshot, asset, i)
			}
			if lot.RemainingAmount > lot.Amount+amountTolerance {
				return fmt.Errorf("%w: %s lot %d remaining exceeds amount", ErrCorruptSnapshot, asset, i)
			}
			ms := date.UnixMilli()
			if ms < prev {
				return fmt.Errorf("%w: %s lots out of chronological order", ErrCorruptSnapshot, asset)
			}
			prev = ms
			parsed = append(parsed, &domain.AcquisitionLot{
				Date:            ms,
				Amount:          lot.Amount,
				UnitPrice:       lot.UnitPrice,
				RemainingAmount: lot.RemainingAmount,
				TransactionID:   lot.TransactionID,
			})
		}
		restored[asset] = parsed
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.method = snap.Method
	l.lots = restored
	return nil
}

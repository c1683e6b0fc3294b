// Package ledger maintains per-asset acquisition lots and resolves disposals
// against them under a selectable cost-basis method (FIFO or Specific
// Identification).
package ledger

import (
	"fmt"
	"sync"
	"time"

	"crypto-tax-core/internal/domain"
)

// amountTolerance absorbs float dust when matching disposal amounts
// against lot remainders.
const amountTolerance = 1e-6

const millisPerDay = 24 * 60 * 60 * 1000

// Ledger owns the per-asset lot state for one user/report context. Mutations
// go through AddAcquisition, CalculateCostBasis, Clear and ImportState only.
// Safe for concurrent use; disposals for one asset must still be submitted
// in chronological order for correct FIFO results.
type Ledger struct {
	mu        sync.RWMutex
	method    domain.CostBasisMethod
	objective SelectionObjective
	lots      map[string][]*domain.AcquisitionLot
}

// New creates an empty ledger for the given method.
func New(method domain.CostBasisMethod) (*Ledger, error) {
	switch method {
	case domain.MethodFIFO, domain.MethodSpecificID:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return &Ledger{
		method:    method,
		objective: MinimizeGain,
		lots:      make(map[string][]*domain.AcquisitionLot),
	}, nil
}

// WithObjective sets the lot-selection objective for Specific Identification.
// Ignored under FIFO.
func (l *Ledger) WithObjective(o SelectionObjective) *Ledger {
	l.objective = o
	return l
}

// Method returns the ledger's cost-basis method.
func (l *Ledger) Method() domain.CostBasisMethod {
	return l.method
}

// AddAcquisition records a new lot from an acquisition transaction. Unit
// price is the quote/base ratio, falling back to the fiat valuation per
// unit, 0 when neither is available.
func (l *Ledger) AddAcquisition(tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	asset := domain.NormalizeAsset(tx.PrimaryAsset())
	amount := tx.PrimaryAmount()
	if amount <= 0 {
		return fmt.Errorf("%w: acquisition %s has no amount", domain.ErrMalformedTransaction, tx.ID)
	}

	unitPrice := tx.UnitPrice()
	if unitPrice == 0 && tx.FiatValue > 0 {
		unitPrice = tx.FiatValue / amount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLot(asset, &domain.AcquisitionLot{
		Date:            tx.Timestamp,
		Amount:          amount,
		UnitPrice:       unitPrice,
		RemainingAmount: amount,
		TransactionID:   tx.ID,
	})
	return nil
}

// insertLot keeps the asset's lot list in ascending chronological order:
// find the first lot dated after the new one and insert before it.
// Callers hold l.mu.
func (l *Ledger) insertLot(asset string, lot *domain.AcquisitionLot) {
	existing := l.lots[asset]
	idx := len(existing)
	for i, e := range existing {
		if e.Date > lot.Date {
			idx = i
			break
		}
	}
	existing = append(existing, nil)
	copy(existing[idx+1:], existing[idx:])
	existing[idx] = lot
	l.lots[asset] = existing
}

// CalculateCostBasis resolves a disposal against the provided acquisition
// set. The asset's lot list is rebuilt from the acquisitions (filtered by
// asset, sorted by date), then consumed under the ledger's method. Nothing
// is committed if the acquisitions cannot cover the disposal: the ledger
// state is untouched on ErrInsufficientLots.
func (l *Ledger) CalculateCostBasis(disposal *domain.Transaction, acquisitions []*domain.Transaction) (*domain.CostBasis, error) {
	if err := disposal.Validate(); err != nil {
		return nil, err
	}
	asset := domain.NormalizeAsset(disposal.PrimaryAsset())
	amount := disposal.PrimaryAmount()
	if amount <= 0 {
		return nil, fmt.Errorf("%w: disposal %s of %s has no amount", ErrInvalidDisposal, disposal.ID, asset)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rebuildAsset(asset, acquisitions); err != nil {
		return nil, err
	}
	return l.consume(disposal, asset, amount)
}

// rebuildAsset replaces the asset's lots with ones derived from the given
// acquisition transactions. Callers hold l.mu.
func (l *Ledger) rebuildAsset(asset string, acquisitions []*domain.Transaction) error {
	if acquisitions == nil {
		// Nil means "use the ledger's current state" — the incremental,
		// cross-session path where lots were added via AddAcquisition
		// or ImportState.
		return nil
	}

	// Validate the whole set before touching state: a malformed
	// acquisition must not leave a half-rebuilt lot list.
	matched := make([]*domain.Transaction, 0, len(acquisitions))
	for _, acq := range acquisitions {
		if acq == nil {
			continue
		}
		if domain.NormalizeAsset(acq.PrimaryAsset()) != asset {
			continue
		}
		if err := acq.Validate(); err != nil {
			return err
		}
		matched = append(matched, acq)
	}

	delete(l.lots, asset)
	for _, acq := range matched {
		amount := acq.PrimaryAmount()
		if amount <= 0 {
			continue
		}
		unitPrice := acq.UnitPrice()
		if unitPrice == 0 && acq.FiatValue > 0 {
			unitPrice = acq.FiatValue / amount
		}
		l.insertLot(asset, &domain.AcquisitionLot{
			Date:            acq.Timestamp,
			Amount:          amount,
			UnitPrice:       unitPrice,
			RemainingAmount: amount,
			TransactionID:   acq.ID,
		})
	}
	return nil
}

// consume greedily matches the disposal amount against lots in selection
// order, building a consumption plan first and committing it only when the
// full amount is covered. Callers hold l.mu.
func (l *Ledger) consume(disposal *domain.Transaction, asset string, amount float64) (*domain.CostBasis, error) {
	ordered := orderLots(l.method, l.objective, l.lots[asset])

	type planEntry struct {
		lot  *domain.AcquisitionLot
		take float64
	}
	var plan []planEntry

	remaining := amount
	for _, lot := range ordered {
		if remaining <= amountTolerance {
			break
		}
		if lot.RemainingAmount <= 0 {
			continue
		}
		take := minFloat(remaining, lot.RemainingAmount)
		plan = append(plan, planEntry{lot: lot, take: take})
		remaining -= take
	}

	if remaining > amountTolerance {
		return nil, fmt.Errorf("%w: disposal %s needs %.8f %s, %.8f unmatched",
			ErrInsufficientLots, disposal.ID, amount, asset, remaining)
	}

	basis := &domain.CostBasis{Method: l.method}
	var totalCost float64
	var earliest int64
	for _, entry := range plan {
		entry.lot.RemainingAmount -= entry.take
		if entry.lot.RemainingAmount < 0 {
			entry.lot.RemainingAmount = 0
		}
		totalCost += entry.take * entry.lot.UnitPrice
		if earliest == 0 || entry.lot.Date < earliest {
			earliest = entry.lot.Date
		}
		basis.Lots = append(basis.Lots, domain.ConsumedLot{
			Date:            entry.lot.Date,
			Amount:          entry.take,
			UnitPrice:       entry.lot.UnitPrice,
			RemainingAmount: entry.lot.RemainingAmount,
			TransactionID:   entry.lot.TransactionID,
		})
	}

	fees := feeValue(disposal.Fee)
	basis.AcquisitionDate = earliest
	basis.AcquisitionFees = fees
	basis.TotalCost = totalCost + fees
	if amount > 0 {
		basis.AcquisitionPrice = totalCost / amount
	}
	basis.HoldingPeriodDays = holdingDays(earliest, disposal.Timestamp)
	return basis, nil
}

// holdingDays is floor(elapsed days) between acquisition and disposal,
// 0 when no lot date is known.
func holdingDays(acquiredMs, disposedMs int64) int {
	if acquiredMs == 0 || disposedMs <= acquiredMs {
		return 0
	}
	return int((disposedMs - acquiredMs) / millisPerDay)
}

// feeValue returns the fiat value of a fee, falling back to its raw amount
// for fiat-denominated fees.
func feeValue(fee *domain.Fee) float64 {
	if fee == nil {
		return 0
	}
	if fee.FiatValue > 0 {
		return fee.FiatValue
	}
	return fee.Amount
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// RemainingLots returns copies of the asset's non-exhausted lots in
// chronological order.
func (l *Ledger) RemainingLots(asset string) []domain.AcquisitionLot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []domain.AcquisitionLot
	for _, lot := range l.lots[domain.NormalizeAsset(asset)] {
		if lot.RemainingAmount > 0 {
			result = append(result, *lot)
		}
	}
	return result
}

// RemainingBalance returns the total unconsumed amount held for an asset.
func (l *Ledger) RemainingBalance(asset string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, lot := range l.lots[domain.NormalizeAsset(asset)] {
		if lot.RemainingAmount > 0 {
			total += lot.RemainingAmount
		}
	}
	return total
}

// AverageCostBasis returns the weighted average unit cost of the asset's
// non-exhausted lots, 0 when nothing is held.
func (l *Ledger) AverageCostBasis(asset string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var amount, cost float64
	for _, lot := range l.lots[domain.NormalizeAsset(asset)] {
		if lot.RemainingAmount > 0 {
			amount += lot.RemainingAmount
			cost += lot.RemainingAmount * lot.UnitPrice
		}
	}
	if amount == 0 {
		return 0
	}
	return cost / amount
}

// Assets returns the asset keys with any recorded lots, in no particular
// order.
func (l *Ledger) Assets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	assets := make([]string, 0, len(l.lots))
	for asset := range l.lots {
		assets = append(assets, asset)
	}
	return assets
}

// Clear drops all lot state.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lots = make(map[string][]*domain.AcquisitionLot)
}

// lotDate converts a lot timestamp to UTC time, used by snapshots.
func lotDate(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package ledger

import (
	"sort"

	"crypto-tax-core/internal/domain"
)

// SelectionObjective directs Specific Identification lot choice. Whether
// gain optimization is lawful is jurisdiction policy; the ledger only
// mechanizes the choice.
type SelectionObjective string

// Selection objective constants
const (
	// MinimizeGain consumes the highest-unit-price lots first, minimizing
	// the realized taxable gain on disposal.
	MinimizeGain SelectionObjective = "MINIMIZE_GAIN"

	// MaximizeGain consumes the lowest-unit-price lots first.
	MaximizeGain SelectionObjective = "MAXIMIZE_GAIN"
)

// orderLots returns the asset's lots in consumption order for the given
// method. FIFO keeps chronological order (the stored order); Specific
// Identification sorts by unit price per the objective, breaking ties by
// date so results stay deterministic.
func orderLots(method domain.CostBasisMethod, objective SelectionObjective, lots []*domain.AcquisitionLot) []*domain.AcquisitionLot {
	ordered := make([]*domain.AcquisitionLot, len(lots))
	copy(ordered, lots)

	if method != domain.MethodSpecificID {
		return ordered
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].UnitPrice != ordered[j].UnitPrice {
			if objective == MaximizeGain {
				return ordered[i].UnitPrice < ordered[j].UnitPrice
			}
			return ordered[i].UnitPrice > ordered[j].UnitPrice
		}
		return ordered[i].Date < ordered[j].Date
	})
	return ordered
}

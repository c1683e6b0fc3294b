package recovery

import (
	"fmt"
	"math"
	"sort"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/idhash"
)

// DuplicateAction tags how a suspected duplicate pair was resolved.
type DuplicateAction string

// Duplicate resolution actions
const (
	ActionKeepOne  DuplicateAction = "KEEP_ONE"
	ActionMerge    DuplicateAction = "MERGE"
	ActionKeepBoth DuplicateAction = "KEEP_BOTH"
)

// crossSourceWindowMillis bounds the timestamp skew tolerated when the same
// economic event is reported by two sources with independent clocks.
const crossSourceWindowMillis = 60_000

// DuplicateResolution records one dedup decision for the audit trail.
type DuplicateResolution struct {
	Action     DuplicateAction
	Confidence float64
	KeptID     string
	DroppedID  string // empty for KEEP_BOTH
	Warning    string // set for KEEP_BOTH
}

// ResolveDuplicates deduplicates a transaction batch.
//
// Identical records (same type, side, timestamp, asset, amounts, source)
// collapse to one at confidence 1.0. The same economic event reported by different
// exchanges within a short window merges at 0.8, preferring the priced
// record. Same-source near-matches are ambiguous: both records survive with
// a 0.5-confidence warning, since data of uncertain duplication is never
// silently dropped. Survivors keep their input order.
func (r *Recoverer) ResolveDuplicates(txs []*domain.Transaction) ([]*domain.Transaction, []DuplicateResolution) {
	var resolutions []DuplicateResolution

	// Pass 1: exact duplicates by identity key.
	seen := make(map[string]*domain.Transaction, len(txs))
	survivors := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		key := idhash.ComputeDuplicateKey(tx)
		if kept, ok := seen[key]; ok {
			resolutions = append(resolutions, DuplicateResolution{
				Action:     ActionKeepOne,
				Confidence: ConfidenceIdenticalDuplicate,
				KeptID:     kept.ID,
				DroppedID:  tx.ID,
			})
			continue
		}
		seen[key] = tx
		survivors = append(survivors, tx)
	}

	// Pass 2: near-matches grouped by economic shape.
	groups := make(map[string][]*domain.Transaction)
	for _, tx := range survivors {
		groups[economicKey(tx)] = append(groups[economicKey(tx)], tx)
	}

	dropped := make(map[string]bool)
	warned := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp < group[j].Timestamp
		})
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if dropped[prev.ID] || cur.Timestamp-prev.Timestamp > crossSourceWindowMillis {
				continue
			}
			if prev.Source.Exchange != cur.Source.Exchange {
				keep, drop := preferPriced(prev, cur)
				dropped[drop.ID] = true
				resolutions = append(resolutions, DuplicateResolution{
					Action:     ActionMerge,
					Confidence: ConfidenceCrossSourceMerge,
					KeptID:     keep.ID,
					DroppedID:  drop.ID,
				})
				continue
			}
			pairKey := prev.ID + "|" + cur.ID
			if !warned[pairKey] {
				warned[pairKey] = true
				resolutions = append(resolutions, DuplicateResolution{
					Action:     ActionKeepBoth,
					Confidence: ConfidenceAmbiguous,
					KeptID:     cur.ID,
					Warning: fmt.Sprintf("transactions %s and %s on %s look alike %.0fs apart, keeping both",
						prev.ID, cur.ID, prev.Source.Exchange,
						float64(cur.Timestamp-prev.Timestamp)/1000),
				})
			}
		}
	}

	if len(dropped) == 0 {
		return survivors, resolutions
	}
	final := make([]*domain.Transaction, 0, len(survivors))
	for _, tx := range survivors {
		if !dropped[tx.ID] {
			final = append(final, tx)
		}
	}
	return final, resolutions
}

// economicKey groups transactions that could describe the same event
// regardless of reporting source or clock skew. Side and quote leg are part
// of the identity: opposite-side trades are always distinct events.
func economicKey(tx *domain.Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%.8f|%s|%.8f",
		tx.Type,
		tx.Side,
		domain.NormalizeAsset(tx.PrimaryAsset()),
		tx.PrimaryAmount(),
		domain.NormalizeAsset(tx.QuoteAsset),
		tx.QuoteAmount,
	)
}

// preferPriced picks the record to keep in a cross-source merge: the one
// with a fiat valuation, else the earlier one.
func preferPriced(a, b *domain.Transaction) (keep, drop *domain.Transaction) {
	if math.Abs(a.FiatValue) > 0 || math.Abs(b.FiatValue) == 0 {
		return a, b
	}
	return b, a
}

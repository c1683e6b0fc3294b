// Package recovery supplies best-effort substitutes for missing cost basis
// and pricing data, and resolves duplicate transactions. Every substitute
// carries a confidence score so reports can flag low-confidence figures.
//
// Strategies return tagged Resolution values, not errors: a missing input is
// an expected, frequent outcome here. ErrRecoveryExhausted is raised only
// when no enabled strategy applies, and the caller decides abort versus
// skip-with-warning.
package recovery

import (
	"errors"
	"fmt"

	"crypto-tax-core/internal/domain"
)

// ErrRecoveryExhausted is the soft failure when no strategy produced a
// usable substitute.
var ErrRecoveryExhausted = errors.New("no recovery strategy applies")

// Confidence levels per strategy.
const (
	ConfidencePriorAcquisitions = 0.7
	ConfidenceMarketEstimate    = 0.5
	ConfidenceZeroBasis         = 0.3

	ConfidenceQuoteRatio  = 0.9
	ConfidencePriceSource = 0.6
	ConfidenceZeroPrice   = 0.2

	ConfidenceIdenticalDuplicate = 1.0
	ConfidenceCrossSourceMerge   = 0.8
	ConfidenceAmbiguous          = 0.5
)

// Resolution is the tagged outcome of a recovery attempt.
type Resolution struct {
	OK         bool
	Value      float64
	Confidence float64
	Reason     string
}

// PriceSource supplies historical market prices. Implementations live
// outside the core; when nil, market-price strategies are skipped.
type PriceSource interface {
	// PriceAt returns the fiat unit price of asset at a Unix-millisecond
	// timestamp, or an error when unavailable.
	PriceAt(asset string, timestamp int64) (float64, error)
}

// Recoverer runs the strategy chains. Zero-basis and zero-price fallbacks
// are opt-in; they produce figures that understate cost and overstate gain.
type Recoverer struct {
	prices         PriceSource
	allowZeroBasis bool
	allowZeroPrice bool
}

// NewRecoverer builds a recoverer with no price source and no zero
// fallbacks enabled.
func NewRecoverer() *Recoverer {
	return &Recoverer{}
}

// WithPriceSource enables market-price strategies.
func (r *Recoverer) WithPriceSource(p PriceSource) *Recoverer {
	r.prices = p
	return r
}

// WithZeroBasisFallback enables the last-resort zero cost basis.
func (r *Recoverer) WithZeroBasisFallback() *Recoverer {
	r.allowZeroBasis = true
	return r
}

// WithZeroPriceFallback enables the last-resort zero price.
func (r *Recoverer) WithZeroPriceFallback() *Recoverer {
	r.allowZeroPrice = true
	return r
}

// RecoverCostBasis estimates a per-unit cost basis for a disposal that the
// ledger could not resolve. prior holds earlier same-asset acquisitions in
// any order; only those dated before the disposal participate.
//
// Chain: average price of prior acquisitions 0.7, market estimate 0.5,
// zero basis 0.3 when opted in, then ErrRecoveryExhausted.
func (r *Recoverer) RecoverCostBasis(disposal *domain.Transaction, prior []*domain.Transaction) (Resolution, error) {
	if disposal == nil {
		return Resolution{}, fmt.Errorf("%w: nil disposal", ErrRecoveryExhausted)
	}
	asset := domain.NormalizeAsset(disposal.PrimaryAsset())

	var totalAmount, totalCost float64
	for _, tx := range prior {
		if tx == nil || tx.Timestamp >= disposal.Timestamp {
			continue
		}
		if domain.NormalizeAsset(tx.PrimaryAsset()) != asset {
			continue
		}
		amount := tx.PrimaryAmount()
		price := tx.UnitPrice()
		if price == 0 && amount > 0 && tx.FiatValue > 0 {
			price = tx.FiatValue / amount
		}
		if amount <= 0 || price <= 0 {
			continue
		}
		totalAmount += amount
		totalCost += amount * price
	}
	if totalAmount > 0 {
		return Resolution{
			OK:         true,
			Value:      totalCost / totalAmount,
			Confidence: ConfidencePriorAcquisitions,
			Reason:     fmt.Sprintf("average unit cost of prior %s acquisitions", asset),
		}, nil
	}

	if r.prices != nil {
		if price, err := r.prices.PriceAt(asset, disposal.Timestamp); err == nil && price > 0 {
			return Resolution{
				OK:         true,
				Value:      price,
				Confidence: ConfidenceMarketEstimate,
				Reason:     fmt.Sprintf("market price estimate for %s at disposal time", asset),
			}, nil
		}
	}

	if r.allowZeroBasis {
		return Resolution{
			OK:         true,
			Value:      0,
			Confidence: ConfidenceZeroBasis,
			Reason:     "zero cost basis fallback, entire proceeds treated as gain",
		}, nil
	}
	return Resolution{}, fmt.Errorf("%w: cost basis for transaction %s", ErrRecoveryExhausted, disposal.ID)
}

// RecoverPrice estimates a fiat unit price for an unpriced transaction.
//
// Chain: same-transaction quote/base ratio 0.9, price source 0.6, zero
// price 0.2 when opted in, then ErrRecoveryExhausted.
func (r *Recoverer) RecoverPrice(tx *domain.Transaction) (Resolution, error) {
	if tx == nil {
		return Resolution{}, fmt.Errorf("%w: nil transaction", ErrRecoveryExhausted)
	}

	if ratio := tx.UnitPrice(); ratio > 0 {
		return Resolution{
			OK:         true,
			Value:      ratio,
			Confidence: ConfidenceQuoteRatio,
			Reason:     "inferred from the transaction's own quote/base ratio",
		}, nil
	}

	asset := domain.NormalizeAsset(tx.PrimaryAsset())
	if r.prices != nil {
		if price, err := r.prices.PriceAt(asset, tx.Timestamp); err == nil && price > 0 {
			return Resolution{
				OK:         true,
				Value:      price,
				Confidence: ConfidencePriceSource,
				Reason:     fmt.Sprintf("market price for %s at transaction time", asset),
			}, nil
		}
	}

	if r.allowZeroPrice {
		return Resolution{
			OK:         true,
			Value:      0,
			Confidence: ConfidenceZeroPrice,
			Reason:     "zero price fallback, event valued at nothing",
		}, nil
	}
	return Resolution{}, fmt.Errorf("%w: price for transaction %s", ErrRecoveryExhausted, tx.ID)
}

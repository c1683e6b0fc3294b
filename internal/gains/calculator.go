// Package gains computes realized capital gains and losses for disposals,
// applying the holding-period discount and personal-use exemption of the
// configured jurisdiction.
package gains

import (
	"fmt"

	"crypto-tax-core/internal/domain"
)

// Input is one disposal to evaluate: the transaction, its resolved cost
// basis, and whether the caller flags the asset as held for personal use.
// Proceeds overrides the transaction's fiat value when positive.
type Input struct {
	Disposal           *domain.Transaction
	CostBasis          *domain.CostBasis
	Proceeds           float64
	IsPersonalUseAsset bool
}

// Result is the gain outcome for one disposal.
type Result struct {
	Proceeds    float64
	CostBasis   float64
	GrossGain   float64
	TaxableGain float64

	DiscountApplied   bool
	PersonalUseExempt bool
	HoldingPeriodDays int

	// AppliedRules carries the jurisdiction rule IDs that shaped the
	// outcome, in application order.
	AppliedRules []string
}

// Calculator evaluates disposals under a single jurisdiction. Stateless
// after construction and safe for concurrent use.
type Calculator struct {
	jurisdiction *domain.TaxJurisdiction
}

// NewCalculator builds a calculator for the given jurisdiction.
func NewCalculator(j *domain.TaxJurisdiction) (*Calculator, error) {
	if j == nil {
		return nil, ErrNilJurisdiction
	}
	return &Calculator{jurisdiction: j}, nil
}

// Jurisdiction returns the configured jurisdiction.
func (c *Calculator) Jurisdiction() *domain.TaxJurisdiction {
	return c.jurisdiction
}

// Evaluate computes the realized gain for one disposal.
//
// Gross gain is proceeds minus total cost, fees included. A positive gain
// held at least the jurisdiction's threshold is discounted; losses never
// are. Personal-use disposals below the jurisdiction threshold are exempt
// entirely when the caller flags the asset as personal use.
func (c *Calculator) Evaluate(in Input) (*Result, error) {
	if in.Disposal == nil {
		return nil, ErrMissingDisposal
	}
	if in.CostBasis == nil {
		return nil, fmt.Errorf("%w: transaction %s", ErrMissingBasis, in.Disposal.ID)
	}

	proceeds := in.Proceeds
	if proceeds == 0 {
		proceeds = in.Disposal.FiatValue
	}
	if proceeds < 0 {
		return nil, fmt.Errorf("%w: %f for transaction %s", ErrInvalidProceeds, proceeds, in.Disposal.ID)
	}

	j := c.jurisdiction
	res := &Result{
		Proceeds:          proceeds,
		CostBasis:         in.CostBasis.TotalCost,
		GrossGain:         proceeds - in.CostBasis.TotalCost,
		HoldingPeriodDays: in.CostBasis.HoldingPeriodDays,
		AppliedRules:      []string{j.Bindings.Disposal},
	}
	res.TaxableGain = res.GrossGain

	if in.IsPersonalUseAsset && j.PersonalUseThreshold > 0 && proceeds < j.PersonalUseThreshold {
		res.PersonalUseExempt = true
		res.TaxableGain = 0
		res.AppliedRules = append(res.AppliedRules, j.Bindings.PersonalUse)
		return res, nil
	}

	if res.GrossGain > 0 && j.DiscountRate > 0 && res.HoldingPeriodDays >= j.HoldingPeriodThresholdDays {
		res.DiscountApplied = true
		res.TaxableGain = res.GrossGain * (1 - j.DiscountRate)
		res.AppliedRules = append(res.AppliedRules, j.Bindings.Discount)
	}
	return res, nil
}

// EvaluateBatch evaluates independent disposals in order. Items share no
// state, so a failure on one carries its index and aborts the batch.
func (c *Calculator) EvaluateBatch(inputs []Input) ([]*Result, error) {
	results := make([]*Result, 0, len(inputs))
	for i, in := range inputs {
		res, err := c.Evaluate(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Treatment renders a Result as the treatment record attached to the
// disposal's taxable event.
func (c *Calculator) Treatment(res *Result) domain.TaxTreatment {
	t := domain.TaxTreatment{
		EventType:          domain.EventDisposal,
		Classification:     domain.ClassCapital,
		IsPersonalUse:      res.PersonalUseExempt,
		IsCgtEligible:      !res.PersonalUseExempt,
		CgtDiscountApplied: res.DiscountApplied,
		ApplicableRules:    append([]string(nil), res.AppliedRules...),
	}
	switch {
	case res.PersonalUseExempt:
		t.Classification = domain.ClassNone
		t.TreatmentReason = fmt.Sprintf("personal use disposal below %s threshold %.2f",
			c.jurisdiction.Code, c.jurisdiction.PersonalUseThreshold)
	case res.DiscountApplied:
		t.TreatmentReason = fmt.Sprintf("capital gain discounted after %d day holding period", res.HoldingPeriodDays)
	case res.GrossGain < 0:
		t.TreatmentReason = "capital loss, no discount applies"
	default:
		t.TreatmentReason = "capital gain at full rate"
	}
	return t
}

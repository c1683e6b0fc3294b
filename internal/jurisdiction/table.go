// Package jurisdiction holds the declarative rule tables consumed by the
// capital gains calculator and the transaction classifier. Only Australia is
// fully elaborated in code; further jurisdictions are TOML data.
package jurisdiction

import (
	"fmt"
	"strings"

	"crypto-tax-core/internal/domain"
)

// builtin holds jurisdictions compiled into the binary.
var builtin = map[string]*domain.TaxJurisdiction{
	"AU": Australia,
}

// Lookup resolves a jurisdiction code against the builtin tables.
// Returns an error wrapping domain.ErrInvalidJurisdiction for unknown codes.
func Lookup(code string) (*domain.TaxJurisdiction, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty code", domain.ErrInvalidJurisdiction)
	}
	j, ok := builtin[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported code %q", domain.ErrInvalidJurisdiction, code)
	}
	return j, nil
}

// Validate checks a jurisdiction configuration for structural sanity.
// Loaded TOML tables pass through here before use.
func Validate(j *domain.TaxJurisdiction) error {
	if j == nil {
		return fmt.Errorf("%w: nil configuration", domain.ErrInvalidJurisdiction)
	}
	if strings.TrimSpace(j.Code) == "" {
		return fmt.Errorf("%w: missing code", domain.ErrInvalidJurisdiction)
	}
	if j.DiscountRate < 0 || j.DiscountRate > 1 {
		return fmt.Errorf("%w: %s discount rate %f outside [0,1]", domain.ErrInvalidJurisdiction, j.Code, j.DiscountRate)
	}
	if j.HoldingPeriodThresholdDays < 0 {
		return fmt.Errorf("%w: %s negative holding period threshold", domain.ErrInvalidJurisdiction, j.Code)
	}
	if j.PersonalUseThreshold < 0 {
		return fmt.Errorf("%w: %s negative personal use threshold", domain.ErrInvalidJurisdiction, j.Code)
	}
	if j.TaxYearStartMonth < 1 || j.TaxYearStartMonth > 12 {
		return fmt.Errorf("%w: %s tax year start month %d", domain.ErrInvalidJurisdiction, j.Code, j.TaxYearStartMonth)
	}
	if j.TaxYearStartDay < 1 || j.TaxYearStartDay > 31 {
		return fmt.Errorf("%w: %s tax year start day %d", domain.ErrInvalidJurisdiction, j.Code, j.TaxYearStartDay)
	}
	if len(j.AllowedMethods) == 0 {
		return fmt.Errorf("%w: %s allows no cost basis methods", domain.ErrInvalidJurisdiction, j.Code)
	}
	for _, m := range j.AllowedMethods {
		if m != domain.MethodFIFO && m != domain.MethodSpecificID {
			return fmt.Errorf("%w: %s unknown method %q", domain.ErrInvalidJurisdiction, j.Code, m)
		}
	}
	b := j.Bindings
	if b.Disposal == "" || b.Acquisition == "" || b.Income == "" || b.Deductible == "" || b.NonTaxable == "" {
		return fmt.Errorf("%w: %s missing core rule bindings", domain.ErrInvalidJurisdiction, j.Code)
	}
	if j.DiscountRate > 0 && b.Discount == "" {
		return fmt.Errorf("%w: %s discounts gains but binds no discount rule", domain.ErrInvalidJurisdiction, j.Code)
	}
	if j.PersonalUseThreshold > 0 && b.PersonalUse == "" {
		return fmt.Errorf("%w: %s has a personal use threshold but binds no rule", domain.ErrInvalidJurisdiction, j.Code)
	}
	for txType, eventType := range j.DeFiTable {
		switch eventType {
		case domain.EventIncome, domain.EventDisposal, domain.EventAcquisition, domain.EventNonTaxable:
		default:
			return fmt.Errorf("%w: %s DeFi table maps %s to %s", domain.ErrInvalidJurisdiction, j.Code, txType, eventType)
		}
		if j.DeFiRuleIDs[txType] == "" {
			return fmt.Errorf("%w: %s DeFi table entry %s has no rule id", domain.ErrInvalidJurisdiction, j.Code, txType)
		}
	}
	if j.BusinessTrading != nil {
		if j.BusinessTrading.RuleID == "" || j.BusinessTrading.MinTradesPerYear <= 0 {
			return fmt.Errorf("%w: %s malformed business trading rule", domain.ErrInvalidJurisdiction, j.Code)
		}
	}
	return nil
}

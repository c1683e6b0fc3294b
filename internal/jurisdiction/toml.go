package jurisdiction

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"crypto-tax-core/internal/domain"
)

// tomlJurisdiction mirrors domain.TaxJurisdiction for declarative TOML
// tables. Additional jurisdictions are shipped as data files, not code.
type tomlJurisdiction struct {
	Code                       string             `toml:"code"`
	Name                       string             `toml:"name"`
	DiscountRate               float64            `toml:"discount_rate"`
	HoldingPeriodThresholdDays int                `toml:"holding_period_threshold_days"`
	PersonalUseThreshold       float64            `toml:"personal_use_threshold"`
	TaxYearStartMonth          int                `toml:"tax_year_start_month"`
	TaxYearStartDay            int                `toml:"tax_year_start_day"`
	AllowedMethods             []string          `toml:"allowed_methods"`
	Rules                      []tomlRule        `toml:"rules"`
	Bindings                   tomlBindings      `toml:"bindings"`
	DeFi                       []tomlDeFiEntry   `toml:"defi"`
	BusinessTrading            *tomlBusinessRule `toml:"business_trading"`
}

type tomlRule struct {
	ID          string `toml:"id"`
	Description string `toml:"description"`
}

type tomlDeFiEntry struct {
	TransactionType string `toml:"transaction_type"`
	EventType       string `toml:"event_type"`
	RuleID          string `toml:"rule_id"`
}

type tomlBindings struct {
	Disposal    string `toml:"disposal"`
	Acquisition string `toml:"acquisition"`
	Income      string `toml:"income"`
	Deductible  string `toml:"deductible"`
	NonTaxable  string `toml:"non_taxable"`
	Discount    string `toml:"discount"`
	PersonalUse string `toml:"personal_use"`
}

type tomlBusinessRule struct {
	RuleID           string `toml:"rule_id"`
	MinTradesPerYear int    `toml:"min_trades_per_year"`
}

// LoadTOML parses a jurisdiction rule table from TOML data and validates it.
func LoadTOML(data []byte) (*domain.TaxJurisdiction, error) {
	var raw tomlJurisdiction
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJurisdiction, err)
	}

	j := &domain.TaxJurisdiction{
		Code:                       raw.Code,
		Name:                       raw.Name,
		DiscountRate:               raw.DiscountRate,
		HoldingPeriodThresholdDays: raw.HoldingPeriodThresholdDays,
		PersonalUseThreshold:       raw.PersonalUseThreshold,
		TaxYearStartMonth:          raw.TaxYearStartMonth,
		TaxYearStartDay:            raw.TaxYearStartDay,
		Bindings: domain.RuleBindings{
			Disposal:    raw.Bindings.Disposal,
			Acquisition: raw.Bindings.Acquisition,
			Income:      raw.Bindings.Income,
			Deductible:  raw.Bindings.Deductible,
			NonTaxable:  raw.Bindings.NonTaxable,
			Discount:    raw.Bindings.Discount,
			PersonalUse: raw.Bindings.PersonalUse,
		},
		DeFiTable:   make(map[domain.TransactionType]domain.TaxEventType, len(raw.DeFi)),
		DeFiRuleIDs: make(map[domain.TransactionType]string, len(raw.DeFi)),
	}
	for _, m := range raw.AllowedMethods {
		j.AllowedMethods = append(j.AllowedMethods, domain.CostBasisMethod(m))
	}
	for _, r := range raw.Rules {
		j.Rules = append(j.Rules, domain.TaxRule{ID: r.ID, Description: r.Description})
	}
	for _, e := range raw.DeFi {
		txType := domain.TransactionType(e.TransactionType)
		j.DeFiTable[txType] = domain.TaxEventType(e.EventType)
		j.DeFiRuleIDs[txType] = e.RuleID
	}
	if raw.BusinessTrading != nil {
		j.BusinessTrading = &domain.BusinessTradingRule{
			RuleID:           raw.BusinessTrading.RuleID,
			MinTradesPerYear: raw.BusinessTrading.MinTradesPerYear,
		}
	}

	if err := Validate(j); err != nil {
		return nil, err
	}
	return j, nil
}

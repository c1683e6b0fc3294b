package domain

// TaxRule is one declarative jurisdiction rule. Rules are data: components
// reference them by ID in TaxTreatment.ApplicableRules.
type TaxRule struct {
	ID          string
	Description string
}

// BusinessTradingRule shifts capital treatment toward business income for
// frequent, high-volume trading. Nil when the jurisdiction has no such rule.
type BusinessTradingRule struct {
	RuleID           string
	MinTradesPerYear int
}

// RuleBindings names the rule IDs behind each standard treatment, so that
// calculators can cite the exact rule applied without hard-coding IDs.
type RuleBindings struct {
	Disposal    string
	Acquisition string
	Income      string
	Deductible  string
	NonTaxable  string
	Discount    string
	PersonalUse string
}

// TaxJurisdiction is an immutable jurisdiction configuration, loaded once.
type TaxJurisdiction struct {
	Code                       string // ISO country code, e.g. "AU"
	Name                       string
	DiscountRate               float64 // e.g. 0.5 for a 50% CGT discount
	HoldingPeriodThresholdDays int     // e.g. 365
	PersonalUseThreshold       float64 // fiat value below which personal use can exempt
	TaxYearStartMonth          int     // 1-12
	TaxYearStartDay            int     // 1-31
	AllowedMethods             []CostBasisMethod
	Rules                      []TaxRule
	Bindings                   RuleBindings
	// DeFiTable maps DeFi interaction types to their tax event type.
	DeFiTable map[TransactionType]TaxEventType
	// DeFiRuleIDs maps DeFi interaction types to the rule justifying the entry.
	DeFiRuleIDs     map[TransactionType]string
	BusinessTrading *BusinessTradingRule
}

// MethodAllowed reports whether the jurisdiction permits a cost-basis method.
func (j *TaxJurisdiction) MethodAllowed(m CostBasisMethod) bool {
	for _, allowed := range j.AllowedMethods {
		if allowed == m {
			return true
		}
	}
	return false
}

// Rule returns the rule with the given ID, or nil.
func (j *TaxJurisdiction) Rule(id string) *TaxRule {
	for i := range j.Rules {
		if j.Rules[i].ID == id {
			return &j.Rules[i]
		}
	}
	return nil
}

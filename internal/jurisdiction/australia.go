package jurisdiction

import "crypto-tax-core/internal/domain"

// Australian rule identifiers
const (
	RuleAUCGTDiscount    = "AU-CGT-DISCOUNT"
	RuleAUPersonalUse    = "AU-PERSONAL-USE"
	RuleAUDisposal       = "AU-CGT-DISPOSAL"
	RuleAUAcquisition    = "AU-CGT-ACQUISITION"
	RuleAUOrdinaryIncome = "AU-ORDINARY-INCOME"
	RuleAUDeductibleFee  = "AU-DEDUCTIBLE-FEE"
	RuleAUNonTaxable     = "AU-NON-TAXABLE"
	RuleAUDeFiSwap       = "AU-DEFI-SWAP"
	RuleAUDeFiLiquidity  = "AU-DEFI-LIQUIDITY"
	RuleAUDeFiLending    = "AU-DEFI-LENDING"
	RuleAUDeFiLoan       = "AU-DEFI-LOAN"
	RuleAUBusinessTrader = "AU-BUSINESS-TRADER"
)

// Australia is the fully elaborated jurisdiction table: 50% CGT discount
// after 12 months, $10,000 personal use threshold, July-June tax year.
var Australia = &domain.TaxJurisdiction{
	Code:                       "AU",
	Name:                       "Australia",
	DiscountRate:               0.5,
	HoldingPeriodThresholdDays: 365,
	PersonalUseThreshold:       10000,
	TaxYearStartMonth:          7,
	TaxYearStartDay:            1,
	AllowedMethods: []domain.CostBasisMethod{
		domain.MethodFIFO,
		domain.MethodSpecificID,
	},
	Rules: []domain.TaxRule{
		{ID: RuleAUDisposal, Description: "Disposing of a CGT asset triggers a capital gains event"},
		{ID: RuleAUAcquisition, Description: "Acquiring a CGT asset establishes a cost base; not itself taxed"},
		{ID: RuleAUCGTDiscount, Description: "50% discount on gains for assets held at least 12 months"},
		{ID: RuleAUPersonalUse, Description: "Gains on personal use assets acquired for under $10,000 are disregarded"},
		{ID: RuleAUOrdinaryIncome, Description: "Staking, mining, interest and airdrop receipts are ordinary income at market value"},
		{ID: RuleAUDeductibleFee, Description: "Transaction fees are deductible against assessable income"},
		{ID: RuleAUNonTaxable, Description: "Events outside the recognized set carry no tax consequence"},
		{ID: RuleAUDeFiSwap, Description: "A token swap is a disposal of the outgoing token"},
		{ID: RuleAUDeFiLiquidity, Description: "Adding liquidity disposes of the contributed tokens; removing re-acquires them"},
		{ID: RuleAUDeFiLending, Description: "DeFi lending returns are ordinary income"},
		{ID: RuleAUDeFiLoan, Description: "Borrowing against collateral is not a CGT event"},
		{ID: RuleAUBusinessTrader, Description: "High-frequency trading as a business is taxed as ordinary income, not capital"},
	},
	Bindings: domain.RuleBindings{
		Disposal:    RuleAUDisposal,
		Acquisition: RuleAUAcquisition,
		Income:      RuleAUOrdinaryIncome,
		Deductible:  RuleAUDeductibleFee,
		NonTaxable:  RuleAUNonTaxable,
		Discount:    RuleAUCGTDiscount,
		PersonalUse: RuleAUPersonalUse,
	},
	DeFiTable: map[domain.TransactionType]domain.TaxEventType{
		domain.TxSwap:            domain.EventDisposal,
		domain.TxLiquidityAdd:    domain.EventDisposal,
		domain.TxLiquidityRemove: domain.EventAcquisition,
		domain.TxLending:         domain.EventIncome,
		domain.TxLoan:            domain.EventNonTaxable,
	},
	DeFiRuleIDs: map[domain.TransactionType]string{
		domain.TxSwap:            RuleAUDeFiSwap,
		domain.TxLiquidityAdd:    RuleAUDeFiLiquidity,
		domain.TxLiquidityRemove: RuleAUDeFiLiquidity,
		domain.TxLending:         RuleAUDeFiLending,
		domain.TxLoan:            RuleAUDeFiLoan,
	},
	BusinessTrading: &domain.BusinessTradingRule{
		RuleID:           RuleAUBusinessTrader,
		MinTradesPerYear: 300,
	},
}

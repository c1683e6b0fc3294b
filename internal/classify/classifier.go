// Package classify maps normalized transactions to tax event types and
// treatments under a jurisdiction's rule table.
package classify

import (
	"errors"
	"fmt"

	"crypto-tax-core/internal/domain"
)

// Classifier errors
var (
	ErrNilJurisdiction = errors.New("nil jurisdiction")
)

// Context carries optional per-transaction facts the caller already knows.
type Context struct {
	// PersonalUseAsset marks the disposed asset as held for personal
	// consumption rather than investment.
	PersonalUseAsset bool
	// HoldingPeriodDays is the resolved holding period when the ledger has
	// already matched lots, 0 when unknown.
	HoldingPeriodDays int
}

// Classifier determines tax treatments. Stateless after construction and
// safe for concurrent use; the investor profile is read-only.
type Classifier struct {
	jurisdiction *domain.TaxJurisdiction
	profile      *domain.InvestorProfile
}

// NewClassifier builds a classifier for the given jurisdiction.
func NewClassifier(j *domain.TaxJurisdiction) (*Classifier, error) {
	if j == nil {
		return nil, ErrNilJurisdiction
	}
	return &Classifier{jurisdiction: j}, nil
}

// WithProfile attaches investor context used by business-trading rules.
func (c *Classifier) WithProfile(p *domain.InvestorProfile) *Classifier {
	c.profile = p
	return c
}

// Classify determines the treatment for one transaction with no extra
// context. Equivalent to ClassifyWithContext(tx, Context{}).
func (c *Classifier) Classify(tx *domain.Transaction) (*domain.TaxTreatment, error) {
	return c.ClassifyWithContext(tx, Context{})
}

// ClassifyWithContext determines the treatment for one transaction.
//
// The switch is exhaustive over the transaction type set. Types outside the
// set degrade to NON_TAXABLE with an explanatory reason rather than failing,
// so one alien record cannot abort a batch. Classification is pure: the same
// transaction and context always produce the same treatment.
func (c *Classifier) ClassifyWithContext(tx *domain.Transaction, ctx Context) (*domain.TaxTreatment, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	switch tx.Type {
	case domain.TxSpotTrade, domain.TxMarginTrade, domain.TxFuturesTrade:
		if tx.Side == domain.SideSell {
			return c.disposal(tx, ctx), nil
		}
		return c.acquisition(tx), nil

	case domain.TxTransfer:
		return c.nonTaxable("transfer between own wallets moves no beneficial ownership"), nil

	case domain.TxFee:
		return c.deductible(tx), nil

	case domain.TxStakingReward:
		return c.income(tx, domain.IncomeStaking), nil
	case domain.TxMiningReward:
		return c.income(tx, domain.IncomeMining), nil
	case domain.TxInterest:
		return c.income(tx, domain.IncomeInterest), nil
	case domain.TxAirdrop:
		return c.income(tx, domain.IncomeAirdrop), nil
	case domain.TxLaunchpool, domain.TxDistribution:
		return c.income(tx, domain.IncomeDistribution), nil

	case domain.TxSwap, domain.TxLiquidityAdd, domain.TxLiquidityRemove,
		domain.TxLending, domain.TxLoan:
		return c.defi(tx, ctx), nil

	default:
		return c.nonTaxable(fmt.Sprintf("unrecognized transaction type %q carries no tax consequence", tx.Type)), nil
	}
}

// ClassifyBatch classifies transactions independently. Malformed
// transactions abort the batch; unknown types do not.
func (c *Classifier) ClassifyBatch(txs []*domain.Transaction) ([]*domain.TaxTreatment, error) {
	treatments := make([]*domain.TaxTreatment, 0, len(txs))
	for i, tx := range txs {
		t, err := c.Classify(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		treatments = append(treatments, t)
	}
	return treatments, nil
}

func (c *Classifier) disposal(tx *domain.Transaction, ctx Context) *domain.TaxTreatment {
	b := c.jurisdiction.Bindings

	if rule := c.businessRule(); rule != nil {
		return &domain.TaxTreatment{
			EventType:       domain.EventDisposal,
			Classification:  domain.ClassBusinessIncome,
			TreatmentReason: fmt.Sprintf("disposal by a trading business (%d+ trades/year)", rule.MinTradesPerYear),
			ApplicableRules: []string{b.Disposal, rule.RuleID},
		}
	}

	t := &domain.TaxTreatment{
		EventType:       domain.EventDisposal,
		Classification:  domain.ClassCapital,
		IsCgtEligible:   true,
		TreatmentReason: "sell side trade disposes of the base asset",
		ApplicableRules: []string{b.Disposal},
	}
	if ctx.PersonalUseAsset && c.jurisdiction.PersonalUseThreshold > 0 &&
		tx.FiatValue > 0 && tx.FiatValue < c.jurisdiction.PersonalUseThreshold {
		t.IsPersonalUse = true
		t.IsCgtEligible = false
		t.Classification = domain.ClassNone
		t.TreatmentReason = "personal use disposal below the exemption threshold"
		t.ApplicableRules = append(t.ApplicableRules, b.PersonalUse)
	}
	return t
}

func (c *Classifier) acquisition(tx *domain.Transaction) *domain.TaxTreatment {
	return &domain.TaxTreatment{
		EventType:       domain.EventAcquisition,
		Classification:  domain.ClassNone,
		TreatmentReason: "buy side trade establishes a cost base, not itself taxed",
		ApplicableRules: []string{c.jurisdiction.Bindings.Acquisition},
	}
}

func (c *Classifier) income(tx *domain.Transaction, category domain.IncomeCategory) *domain.TaxTreatment {
	return &domain.TaxTreatment{
		EventType:       domain.EventIncome,
		Classification:  domain.ClassOrdinaryIncome,
		TreatmentReason: fmt.Sprintf("%s receipt is ordinary income at market value", category),
		ApplicableRules: []string{c.jurisdiction.Bindings.Income},
	}
}

func (c *Classifier) deductible(tx *domain.Transaction) *domain.TaxTreatment {
	return &domain.TaxTreatment{
		EventType:       domain.EventDeductible,
		Classification:  domain.ClassOrdinaryIncome,
		TreatmentReason: "standalone fee is deductible against assessable income",
		ApplicableRules: []string{c.jurisdiction.Bindings.Deductible},
	}
}

func (c *Classifier) nonTaxable(reason string) *domain.TaxTreatment {
	return &domain.TaxTreatment{
		EventType:       domain.EventNonTaxable,
		Classification:  domain.ClassNone,
		TreatmentReason: reason,
		ApplicableRules: []string{c.jurisdiction.Bindings.NonTaxable},
	}
}

// defi resolves DeFi interaction types through the jurisdiction rule table.
// An unmapped type is non-taxable rather than an error: jurisdictions that
// have not ruled on an interaction cannot tax it.
func (c *Classifier) defi(tx *domain.Transaction, ctx Context) *domain.TaxTreatment {
	eventType, ok := c.jurisdiction.DeFiTable[tx.Type]
	if !ok {
		return c.nonTaxable(fmt.Sprintf("no %s DeFi rule for %s", c.jurisdiction.Code, tx.Type))
	}
	ruleID := c.jurisdiction.DeFiRuleIDs[tx.Type]

	var t *domain.TaxTreatment
	switch eventType {
	case domain.EventDisposal:
		t = c.disposal(tx, ctx)
	case domain.EventAcquisition:
		t = c.acquisition(tx)
	case domain.EventIncome:
		t = c.income(tx, domain.IncomeDeFi)
	default:
		t = c.nonTaxable(fmt.Sprintf("%s %s has no tax consequence under %s rules", tx.Type, tx.ID, c.jurisdiction.Code))
	}
	t.TreatmentReason = fmt.Sprintf("%s resolved as %s by the %s DeFi rule table", tx.Type, eventType, c.jurisdiction.Code)
	if ruleID != "" {
		t.ApplicableRules = append(t.ApplicableRules, ruleID)
	}
	return t
}

// businessRule returns the jurisdiction's business-trading rule when the
// investor profile triggers it, nil otherwise.
func (c *Classifier) businessRule() *domain.BusinessTradingRule {
	rule := c.jurisdiction.BusinessTrading
	if rule == nil || c.profile == nil {
		return nil
	}
	if c.profile.Type == domain.InvestorBusiness {
		return rule
	}
	if c.profile.TradesPerYear >= rule.MinTradesPerYear {
		return rule
	}
	return nil
}

// IncomeCategoryFor buckets a reward-bearing transaction type for reporting.
func IncomeCategoryFor(txType domain.TransactionType) domain.IncomeCategory {
	switch txType {
	case domain.TxStakingReward:
		return domain.IncomeStaking
	case domain.TxMiningReward:
		return domain.IncomeMining
	case domain.TxInterest:
		return domain.IncomeInterest
	case domain.TxAirdrop:
		return domain.IncomeAirdrop
	case domain.TxLaunchpool, domain.TxDistribution:
		return domain.IncomeDistribution
	case domain.TxLending:
		return domain.IncomeDeFi
	default:
		return domain.IncomeOther
	}
}

package classify

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/jurisdiction"
)

func newAUClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(jurisdiction.Australia)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	return c
}

func tx(id string, txType domain.TransactionType) *domain.Transaction {
	t := &domain.Transaction{
		ID:        id,
		Type:      txType,
		Timestamp: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Source:    domain.Source{Exchange: "binance"},
	}
	switch txType {
	case domain.TxSpotTrade, domain.TxMarginTrade, domain.TxFuturesTrade:
		t.Side = domain.SideBuy
		t.BaseAsset = "BTC"
		t.BaseAmount = 1
		t.QuoteAsset = "USD"
		t.QuoteAmount = 50000
		t.FiatValue = 50000
	case domain.TxFee:
		t.Fee = &domain.Fee{Asset: "BNB", Amount: 0.01, FiatValue: 5}
	case domain.TxSwap, domain.TxLiquidityAdd, domain.TxLending, domain.TxLoan:
		t.FromAsset = "ETH"
		t.FromAmount = 2
		t.ToAsset = "USDC"
		t.ToAmount = 6000
		t.FiatValue = 6000
	case domain.TxLiquidityRemove:
		t.ToAsset = "ETH"
		t.ToAmount = 2
		t.FiatValue = 6000
	default:
		t.ToAsset = "SOL"
		t.ToAmount = 10
		t.FiatValue = 1500
	}
	return t
}

func sell(id string, fiatValue float64) *domain.Transaction {
	s := tx(id, domain.TxSpotTrade)
	s.Side = domain.SideSell
	s.FiatValue = fiatValue
	return s
}

func TestClassify_TradeSides(t *testing.T) {
	c := newAUClassifier(t)

	got, err := c.Classify(sell("t-1", 50000))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.EventType != domain.EventDisposal || got.Classification != domain.ClassCapital {
		t.Errorf("sell trade = %s/%s, want DISPOSAL/CAPITAL", got.EventType, got.Classification)
	}
	if !got.IsCgtEligible {
		t.Error("plain disposal should be CGT eligible")
	}

	got, err = c.Classify(tx("t-2", domain.TxSpotTrade))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.EventType != domain.EventAcquisition {
		t.Errorf("buy trade = %s, want ACQUISITION", got.EventType)
	}
}

func TestClassify_IncomeTypes(t *testing.T) {
	c := newAUClassifier(t)

	incomeTypes := []domain.TransactionType{
		domain.TxStakingReward, domain.TxMiningReward, domain.TxInterest,
		domain.TxAirdrop, domain.TxLaunchpool, domain.TxDistribution,
	}
	for _, txType := range incomeTypes {
		got, err := c.Classify(tx("i-1", txType))
		if err != nil {
			t.Fatalf("Classify(%s) failed: %v", txType, err)
		}
		if got.EventType != domain.EventIncome {
			t.Errorf("%s = %s, want INCOME", txType, got.EventType)
		}
		if got.Classification != domain.ClassOrdinaryIncome {
			t.Errorf("%s classification = %s, want ORDINARY_INCOME", txType, got.Classification)
		}
		if got.IsCgtEligible || got.IsPersonalUse {
			t.Errorf("%s: income is never CGT eligible or personal use", txType)
		}
	}
}

func TestClassify_TransferAndFee(t *testing.T) {
	c := newAUClassifier(t)

	got, err := c.Classify(tx("m-1", domain.TxTransfer))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.EventType != domain.EventNonTaxable {
		t.Errorf("transfer = %s, want NON_TAXABLE", got.EventType)
	}

	got, err = c.Classify(tx("m-2", domain.TxFee))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.EventType != domain.EventDeductible {
		t.Errorf("fee = %s, want DEDUCTIBLE", got.EventType)
	}
}

func TestClassify_DeFiRuleTable(t *testing.T) {
	c := newAUClassifier(t)

	cases := []struct {
		txType domain.TransactionType
		want   domain.TaxEventType
		rule   string
	}{
		{domain.TxSwap, domain.EventDisposal, jurisdiction.RuleAUDeFiSwap},
		{domain.TxLiquidityAdd, domain.EventDisposal, jurisdiction.RuleAUDeFiLiquidity},
		{domain.TxLiquidityRemove, domain.EventAcquisition, jurisdiction.RuleAUDeFiLiquidity},
		{domain.TxLending, domain.EventIncome, jurisdiction.RuleAUDeFiLending},
		{domain.TxLoan, domain.EventNonTaxable, jurisdiction.RuleAUDeFiLoan},
	}
	for _, tc := range cases {
		got, err := c.Classify(tx("d-1", tc.txType))
		if err != nil {
			t.Fatalf("Classify(%s) failed: %v", tc.txType, err)
		}
		if got.EventType != tc.want {
			t.Errorf("%s = %s, want %s", tc.txType, got.EventType, tc.want)
		}
		found := false
		for _, id := range got.ApplicableRules {
			if id == tc.rule {
				found = true
			}
		}
		if !found {
			t.Errorf("%s rules = %v, missing %s", tc.txType, got.ApplicableRules, tc.rule)
		}
	}
}

func TestClassify_DeFiUnmappedType(t *testing.T) {
	// A jurisdiction with an empty DeFi table treats swaps as non-taxable
	// rather than failing.
	bare := *jurisdiction.Australia
	bare.DeFiTable = nil
	bare.DeFiRuleIDs = nil
	c, err := NewClassifier(&bare)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	got, err := c.Classify(tx("d-2", domain.TxSwap))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.EventType != domain.EventNonTaxable {
		t.Errorf("unmapped swap = %s, want NON_TAXABLE", got.EventType)
	}
	if got.TreatmentReason == "" {
		t.Error("graceful degradation must explain itself")
	}
}

func TestClassify_BusinessTradingRule(t *testing.T) {
	c := newAUClassifier(t).WithProfile(&domain.InvestorProfile{
		Type:          domain.InvestorPersonal,
		TradesPerYear: 500,
	})

	got, err := c.Classify(sell("b-1", 50000))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Classification != domain.ClassBusinessIncome {
		t.Errorf("500 trades/year = %s, want BUSINESS_INCOME", got.Classification)
	}
	found := false
	for _, id := range got.ApplicableRules {
		if id == jurisdiction.RuleAUBusinessTrader {
			found = true
		}
	}
	if !found {
		t.Errorf("rules = %v, missing %s", got.ApplicableRules, jurisdiction.RuleAUBusinessTrader)
	}

	// A quiet personal investor keeps capital treatment.
	quiet := newAUClassifier(t).WithProfile(&domain.InvestorProfile{
		Type:          domain.InvestorPersonal,
		TradesPerYear: 12,
	})
	got, err = quiet.Classify(sell("b-2", 50000))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Classification != domain.ClassCapital {
		t.Errorf("12 trades/year = %s, want CAPITAL", got.Classification)
	}

	// An explicit business profile triggers the rule regardless of volume.
	biz := newAUClassifier(t).WithProfile(&domain.InvestorProfile{
		Type:          domain.InvestorBusiness,
		TradesPerYear: 1,
	})
	got, err = biz.Classify(sell("b-3", 50000))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Classification != domain.ClassBusinessIncome {
		t.Errorf("business profile = %s, want BUSINESS_INCOME", got.Classification)
	}
}

func TestClassify_PersonalUseContext(t *testing.T) {
	c := newAUClassifier(t)

	got, err := c.ClassifyWithContext(sell("p-1", 5000), Context{PersonalUseAsset: true})
	if err != nil {
		t.Fatalf("ClassifyWithContext failed: %v", err)
	}
	if !got.IsPersonalUse || got.IsCgtEligible {
		t.Errorf("got %+v, want personal use, not CGT eligible", got)
	}

	// Above the threshold the flag changes nothing.
	got, err = c.ClassifyWithContext(sell("p-2", 15000), Context{PersonalUseAsset: true})
	if err != nil {
		t.Fatalf("ClassifyWithContext failed: %v", err)
	}
	if got.IsPersonalUse {
		t.Error("15000 disposal exceeds the personal use threshold")
	}
}

func TestClassify_ExhaustiveOverTypeSet(t *testing.T) {
	c := newAUClassifier(t)

	for _, txType := range domain.AllTransactionTypes {
		got, err := c.Classify(tx("x-1", txType))
		if err != nil {
			t.Fatalf("Classify(%s) failed: %v", txType, err)
		}
		if got.EventType == domain.EventUnclassified {
			t.Errorf("%s left UNCLASSIFIED", txType)
		}
		if got.TreatmentReason == "" {
			t.Errorf("%s has no treatment reason", txType)
		}
		if len(got.ApplicableRules) == 0 {
			t.Errorf("%s cites no rules", txType)
		}
	}
}

func TestClassify_UnknownTypeGraceful(t *testing.T) {
	c := newAUClassifier(t)

	got, err := c.Classify(tx("u-1", domain.TransactionType("NFT_MINT")))
	if err != nil {
		t.Fatalf("unknown type should not fail: %v", err)
	}
	if got.EventType != domain.EventNonTaxable {
		t.Errorf("unknown type = %s, want NON_TAXABLE", got.EventType)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newAUClassifier(t)

	sale := sell("i-1", 50000)
	first, err := c.Classify(sale)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := c.Classify(sale)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("classification not idempotent: %+v vs %+v", first, second)
	}
}

func TestClassify_Malformed(t *testing.T) {
	c := newAUClassifier(t)

	_, err := c.Classify(&domain.Transaction{Type: domain.TxSpotTrade})
	if !errors.Is(err, domain.ErrMalformedTransaction) {
		t.Errorf("expected ErrMalformedTransaction, got %v", err)
	}

	// A trade with no side has no direction; it must never fabricate a
	// cost base.
	sideless := tx("t-3", domain.TxSpotTrade)
	sideless.Side = ""
	if _, err := c.Classify(sideless); !errors.Is(err, domain.ErrMalformedTransaction) {
		t.Errorf("expected ErrMalformedTransaction for side-less trade, got %v", err)
	}

	batch := []*domain.Transaction{sell("ok-1", 100), {ID: "bad"}}
	if _, err := c.ClassifyBatch(batch); !errors.Is(err, domain.ErrMalformedTransaction) {
		t.Errorf("expected batch abort on malformed transaction, got %v", err)
	}
}

func TestIncomeCategoryFor(t *testing.T) {
	if got := IncomeCategoryFor(domain.TxStakingReward); got != domain.IncomeStaking {
		t.Errorf("staking = %s", got)
	}
	if got := IncomeCategoryFor(domain.TxLending); got != domain.IncomeDeFi {
		t.Errorf("lending = %s", got)
	}
	if got := IncomeCategoryFor(domain.TxSpotTrade); got != domain.IncomeOther {
		t.Errorf("fallback = %s", got)
	}
}

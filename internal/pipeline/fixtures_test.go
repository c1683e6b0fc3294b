package pipeline

import (
	"context"
	"testing"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/recovery"
)

func TestDemoTransactions_FullRun(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), "2024-2025", DemoTransactions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Three disposals (BTC sale, ETH swap, SOL sale), one income receipt,
	// one deductible fee. The duplicate BTC sale collapses.
	if len(result.Events) != 5 {
		t.Fatalf("events = %d, want 5", len(result.Events))
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].Action != recovery.ActionKeepOne {
		t.Errorf("Duplicates = %+v, want one KEEP_ONE", result.Duplicates)
	}
	if len(result.SkippedIDs) != 0 {
		t.Errorf("SkippedIDs = %v, want none", result.SkippedIDs)
	}

	report := result.Report
	if !approx(report.TotalCapitalGains, 14776) {
		t.Errorf("TotalCapitalGains = %f, want 14776", report.TotalCapitalGains)
	}
	if !approx(report.TotalDiscountedGains, 13976) {
		t.Errorf("TotalDiscountedGains = %f, want 13976 from the long-held BTC", report.TotalDiscountedGains)
	}
	if !approx(report.TotalIncome, 180) {
		t.Errorf("TotalIncome = %f, want 180", report.TotalIncome)
	}
	if report.IncomeByCategory[domain.IncomeStaking] == 0 {
		t.Error("staking income missing from category breakdown")
	}
	if !approx(report.DeductibleFees, 25) {
		t.Errorf("DeductibleFees = %f, want 25", report.DeductibleFees)
	}
	if report.EventCount != 5 {
		t.Errorf("EventCount = %d, want 5", report.EventCount)
	}
}

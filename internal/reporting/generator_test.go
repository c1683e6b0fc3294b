package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/jurisdiction"
	"crypto-tax-core/internal/storage/memory"
)

const tolerance = 1e-6

func eventAt(id string, month time.Month, year int) *domain.TaxableEvent {
	return &domain.TaxableEvent{
		EventID:      id,
		TaxYear:      "2024-2025",
		Jurisdiction: "AU",
		Asset:        "BTC",
		Exchange:     "binance",
		Timestamp:    time.Date(year, month, 15, 0, 0, 0, 0, time.UTC).UnixMilli(),
		EventType:    domain.EventDisposal,
		Confidence:   1.0,
	}
}

func gainEvent(id string, taxableGain float64, discounted bool) *domain.TaxableEvent {
	e := eventAt(id, time.January, 2025)
	e.TaxableGain = taxableGain
	e.GrossGain = taxableGain
	e.DiscountApplied = discounted
	return e
}

func incomeEvent(id string, amount float64, category domain.IncomeCategory) *domain.TaxableEvent {
	e := eventAt(id, time.February, 2025)
	e.EventType = domain.EventIncome
	e.Classification = domain.ClassOrdinaryIncome
	e.IncomeCategory = category
	e.IncomeAmount = amount
	return e
}

func fixedClock() func() time.Time {
	at := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestBuild_Totals(t *testing.T) {
	g := NewGenerator(nil).WithClock(fixedClock())

	events := []*domain.TaxableEvent{
		gainEvent("e-1", 5000, true),
		gainEvent("e-2", 2000, false),
		gainEvent("e-3", -1500, false),
		incomeEvent("e-4", 800, domain.IncomeStaking),
		incomeEvent("e-5", 200, domain.IncomeStaking),
		incomeEvent("e-6", 100, domain.IncomeMining),
	}
	fee := eventAt("e-7", time.March, 2025)
	fee.EventType = domain.EventDeductible
	fee.DeductibleFee = 40
	events = append(events, fee)

	report, err := g.Build(jurisdiction.Australia, "2024-2025", events)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if math.Abs(report.TotalCapitalGains-7000) > tolerance {
		t.Errorf("TotalCapitalGains = %f, want 7000", report.TotalCapitalGains)
	}
	if math.Abs(report.TotalDiscountedGains-5000) > tolerance {
		t.Errorf("TotalDiscountedGains = %f, want 5000", report.TotalDiscountedGains)
	}
	if math.Abs(report.TotalLosses-1500) > tolerance {
		t.Errorf("TotalLosses = %f, want 1500", report.TotalLosses)
	}
	if math.Abs(report.NetCapitalGain-5500) > tolerance {
		t.Errorf("NetCapitalGain = %f, want 5500", report.NetCapitalGain)
	}
	if math.Abs(report.TotalIncome-1100) > tolerance {
		t.Errorf("TotalIncome = %f, want 1100", report.TotalIncome)
	}
	if math.Abs(report.IncomeByCategory[domain.IncomeStaking]-1000) > tolerance {
		t.Errorf("staking income = %f, want 1000", report.IncomeByCategory[domain.IncomeStaking])
	}
	if math.Abs(report.DeductibleFees-40) > tolerance {
		t.Errorf("DeductibleFees = %f, want 40", report.DeductibleFees)
	}
	if report.EventCount != 7 {
		t.Errorf("EventCount = %d, want 7", report.EventCount)
	}
	if report.ReportID == "" {
		t.Error("ReportID not set")
	}
	if !report.GeneratedAt.Equal(fixedClock()()) {
		t.Errorf("GeneratedAt = %v, clock not honored", report.GeneratedAt)
	}
}

func TestBuild_WindowFiltersEvents(t *testing.T) {
	g := NewGenerator(nil)

	inside := gainEvent("in-1", 1000, false)
	outside := eventAt("out-1", time.August, 2025) // next AU tax year
	outside.TaxableGain = 999999

	report, err := g.Build(jurisdiction.Australia, "2024-2025", []*domain.TaxableEvent{inside, outside})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if report.EventCount != 1 {
		t.Errorf("EventCount = %d, want 1 inside the window", report.EventCount)
	}
	if math.Abs(report.TotalCapitalGains-1000) > tolerance {
		t.Errorf("TotalCapitalGains = %f, outside event leaked in", report.TotalCapitalGains)
	}
}

func TestBuild_PersonalUseExcluded(t *testing.T) {
	g := NewGenerator(nil)

	exempt := gainEvent("pu-1", 0, false)
	exempt.GrossGain = 2000
	exempt.PersonalUse = true

	report, err := g.Build(jurisdiction.Australia, "2024-2025", []*domain.TaxableEvent{exempt})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if report.ExemptDisposals != 1 {
		t.Errorf("ExemptDisposals = %d, want 1", report.ExemptDisposals)
	}
	if report.TotalCapitalGains != 0 {
		t.Errorf("TotalCapitalGains = %f, exempt gain counted", report.TotalCapitalGains)
	}
}

func TestBuild_Breakdowns(t *testing.T) {
	g := NewGenerator(nil)

	jan := gainEvent("b-1", 1000, false)
	feb := gainEvent("b-2", -400, false)
	feb.Timestamp = time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	feb.Asset = "ETH"
	feb.Exchange = "coinbase"

	report, err := g.Build(jurisdiction.Australia, "2024-2025", []*domain.TaxableEvent{jan, feb})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	btc := report.ByAsset["BTC"]
	if btc == nil || math.Abs(btc.CapitalGains-1000) > tolerance {
		t.Errorf("ByAsset[BTC] = %+v, want 1000 gains", btc)
	}
	eth := report.ByAsset["ETH"]
	if eth == nil || math.Abs(eth.Losses-400) > tolerance {
		t.Errorf("ByAsset[ETH] = %+v, want 400 losses", eth)
	}
	if m := report.ByMonth["2025-01"]; m == nil || m.Events != 1 {
		t.Errorf("ByMonth[2025-01] = %+v, want 1 event", m)
	}
	if s := report.BySource["coinbase"]; s == nil || s.Events != 1 {
		t.Errorf("BySource[coinbase] = %+v, want 1 event", s)
	}
}

func TestBuild_LowConfidenceWarnings(t *testing.T) {
	g := NewGenerator(nil)

	shaky := gainEvent("lc-1", 500, false)
	shaky.Confidence = 0.3
	shaky.Notes = "zero cost basis fallback"

	report, err := g.Build(jurisdiction.Australia, "2024-2025", []*domain.TaxableEvent{shaky})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if report.LowConfidenceCount != 1 {
		t.Errorf("LowConfidenceCount = %d, want 1", report.LowConfidenceCount)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "lc-1") {
		t.Errorf("Warnings = %v, want one naming the event", report.Warnings)
	}
}

func TestBuild_BadTaxYear(t *testing.T) {
	g := NewGenerator(nil)
	if _, err := g.Build(jurisdiction.Australia, "2024", nil); err == nil {
		t.Error("expected error for malformed tax year")
	}
}

func TestGenerate_FromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaxableEventStore()

	events := []*domain.TaxableEvent{
		gainEvent("s-1", 3000, false),
		incomeEvent("s-2", 500, domain.IncomeStaking),
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	g := NewGenerator(store).WithClock(fixedClock())
	report, err := g.Generate(ctx, jurisdiction.Australia, "2024-2025")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", report.EventCount)
	}
	if math.Abs(report.TotalCapitalGains-3000) > tolerance {
		t.Errorf("TotalCapitalGains = %f, want 3000", report.TotalCapitalGains)
	}
}

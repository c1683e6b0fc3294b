// Package reporting aggregates taxable events into the tax-year report
// handed to external formatters.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/jurisdiction"
	"crypto-tax-core/internal/storage"
)

// lowConfidenceThreshold flags events whose inputs came from recovery
// strategies rather than resolved data.
const lowConfidenceThreshold = 0.7

// Generator produces tax reports from stored or in-memory events.
type Generator struct {
	eventStore storage.TaxableEventStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. eventStore may be nil when
// reports are built only from in-memory events via Build.
func NewGenerator(eventStore storage.TaxableEventStore) *Generator {
	return &Generator{
		eventStore: eventStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a tax year's events from the store and aggregates them.
func (g *Generator) Generate(ctx context.Context, j *domain.TaxJurisdiction, taxYearLabel string) (*TaxReport, error) {
	if g.eventStore == nil {
		return nil, fmt.Errorf("no event store configured")
	}
	events, err := g.eventStore.GetByTaxYear(ctx, j.Code, taxYearLabel)
	if err != nil {
		return nil, err
	}
	return g.Build(j, taxYearLabel, events)
}

// Build aggregates events into a report. Events outside the tax-year window
// are skipped; callers may pass a superset.
func (g *Generator) Build(j *domain.TaxJurisdiction, taxYearLabel string, events []*domain.TaxableEvent) (*TaxReport, error) {
	ty, err := jurisdiction.ParseTaxYear(taxYearLabel)
	if err != nil {
		return nil, err
	}

	report := &TaxReport{
		ReportID:         uuid.NewString(),
		TaxYear:          ty.Label,
		Jurisdiction:     j.Code,
		GeneratedAt:      g.now(),
		IncomeByCategory: make(map[domain.IncomeCategory]float64),
		ByAsset:          make(map[string]*Breakdown),
		ByMonth:          make(map[string]*Breakdown),
		BySource:         make(map[string]*Breakdown),
	}

	for _, e := range events {
		if e == nil || !ty.Contains(j, e.Timestamp) {
			continue
		}
		report.EventCount++
		g.applyEvent(report, e)
	}

	report.NetCapitalGain = report.TotalCapitalGains - report.TotalLosses
	sort.Strings(report.Warnings)
	return report, nil
}

func (g *Generator) applyEvent(report *TaxReport, e *domain.TaxableEvent) {
	buckets := []*Breakdown{
		bucket(report.ByAsset, e.Asset),
		bucket(report.ByMonth, time.UnixMilli(e.Timestamp).UTC().Format("2006-01")),
		bucket(report.BySource, e.Exchange),
	}
	for _, b := range buckets {
		b.Events++
	}

	switch e.EventType {
	case domain.EventDisposal:
		if e.PersonalUse {
			report.ExemptDisposals++
			break
		}
		if e.TaxableGain >= 0 {
			report.TotalCapitalGains += e.TaxableGain
			if e.DiscountApplied {
				report.TotalDiscountedGains += e.TaxableGain
			}
			for _, b := range buckets {
				b.CapitalGains += e.TaxableGain
			}
		} else {
			loss := -e.TaxableGain
			report.TotalLosses += loss
			for _, b := range buckets {
				b.Losses += loss
			}
		}

	case domain.EventIncome:
		report.TotalIncome += e.IncomeAmount
		category := e.IncomeCategory
		if category == "" {
			category = domain.IncomeOther
		}
		report.IncomeByCategory[category] += e.IncomeAmount
		for _, b := range buckets {
			b.Income += e.IncomeAmount
		}

	case domain.EventDeductible:
		report.DeductibleFees += e.DeductibleFee
		for _, b := range buckets {
			b.Fees += e.DeductibleFee
		}
	}

	if e.Confidence > 0 && e.Confidence < lowConfidenceThreshold {
		report.LowConfidenceCount++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("event %s for %s carries low confidence %.2f: %s",
				e.EventID, e.Asset, e.Confidence, e.Notes))
	}
}

func bucket(m map[string]*Breakdown, key string) *Breakdown {
	if key == "" {
		key = "unknown"
	}
	b, ok := m[key]
	if !ok {
		b = &Breakdown{}
		m[key] = b
	}
	return b
}

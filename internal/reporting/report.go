package reporting

import (
	"time"

	"crypto-tax-core/internal/domain"
)

// Breakdown accumulates gain, loss and income figures for one report bucket.
type Breakdown struct {
	CapitalGains float64 // sum of positive taxable gains
	Losses       float64 // sum of loss magnitudes
	Income       float64
	Fees         float64
	Events       int
}

// TaxReport aggregates one tax year's taxable events. External formatters
// (PDF, XML, CSV) consume this structure; the core does not render it.
type TaxReport struct {
	// Metadata
	ReportID     string
	TaxYear      string
	Jurisdiction string
	GeneratedAt  time.Time

	// Capital figures. TotalLosses is a magnitude; NetCapitalGain is
	// TotalCapitalGains minus TotalLosses and may be negative.
	TotalCapitalGains    float64
	TotalDiscountedGains float64
	TotalLosses          float64
	NetCapitalGain       float64
	ExemptDisposals      int

	// Ordinary income and deductions
	TotalIncome      float64
	IncomeByCategory map[domain.IncomeCategory]float64
	DeductibleFees   float64

	// Breakdowns. ByMonth keys are "YYYY-MM" in UTC.
	ByAsset  map[string]*Breakdown
	ByMonth  map[string]*Breakdown
	BySource map[string]*Breakdown

	// Data quality
	EventCount         int
	LowConfidenceCount int
	Warnings           []string
}

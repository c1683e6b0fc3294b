package domain

// IncomeCategory buckets ordinary income for reporting.
type IncomeCategory string

// Income category constants
const (
	IncomeStaking      IncomeCategory = "STAKING"
	IncomeMining       IncomeCategory = "MINING"
	IncomeInterest     IncomeCategory = "INTEREST"
	IncomeAirdrop      IncomeCategory = "AIRDROP"
	IncomeDistribution IncomeCategory = "DISTRIBUTION"
	IncomeDeFi         IncomeCategory = "DEFI"
	IncomeOther        IncomeCategory = "OTHER"
)

// TaxableEvent is one realized tax outcome derived from a transaction:
// a capital gain/loss, an income receipt, or a deductible fee.
// Corresponds to the taxable_events table.
type TaxableEvent struct {
	EventID       string // deterministic hash, see internal/idhash
	TransactionID string
	TaxYear       string // "YYYY-YYYY"
	Jurisdiction  string
	Asset         string // normalized asset key
	Exchange      string // originating exchange/protocol
	Timestamp     int64  // Unix milliseconds UTC

	EventType      TaxEventType
	Classification Classification
	IncomeCategory IncomeCategory // set for INCOME events only

	Proceeds        float64
	CostBasis       float64
	GrossGain       float64
	TaxableGain     float64 // after discount / exemption
	IncomeAmount    float64 // fiat value for INCOME events
	DeductibleFee   float64 // fiat value for DEDUCTIBLE events
	DiscountApplied bool
	PersonalUse     bool

	// Confidence is 1.0 for fully resolved events and lower when Error
	// Recovery substituted missing data.
	Confidence float64
	Notes      string
}

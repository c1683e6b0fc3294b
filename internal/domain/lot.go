package domain

// CostBasisMethod selects the lot-matching policy.
type CostBasisMethod string

// Cost basis method constants
const (
	MethodFIFO       CostBasisMethod = "FIFO"
	MethodSpecificID CostBasisMethod = "SPECIFIC_ID"
)

// AcquisitionLot is one acquisition event for one asset. RemainingAmount
// decreases monotonically as disposals consume it and is never negative.
// A fully consumed lot (RemainingAmount == 0) is retained for audit.
type AcquisitionLot struct {
	Date            int64 // Unix milliseconds UTC
	Amount          float64
	UnitPrice       float64
	RemainingAmount float64
	TransactionID   string
}

// ConsumedLot records one lot slice consumed by a disposal.
type ConsumedLot struct {
	Date            int64   // acquisition date of the source lot
	Amount          float64 // amount taken from the lot by this disposal
	UnitPrice       float64
	RemainingAmount float64 // lot remainder after consumption
	TransactionID   string
}

// CostBasis is the resolved acquisition cost for a single disposal.
type CostBasis struct {
	Method            CostBasisMethod
	AcquisitionDate   int64 // earliest consumed lot date
	AcquisitionPrice  float64
	AcquisitionFees   float64
	TotalCost         float64
	HoldingPeriodDays int
	Lots              []ConsumedLot
}

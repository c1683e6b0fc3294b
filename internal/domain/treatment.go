package domain

// TaxEventType is the classifier's verdict for a transaction.
type TaxEventType string

// Tax event type constants
const (
	EventUnclassified TaxEventType = "UNCLASSIFIED"
	EventDisposal     TaxEventType = "DISPOSAL"
	EventAcquisition  TaxEventType = "ACQUISITION"
	EventIncome       TaxEventType = "INCOME"
	EventDeductible   TaxEventType = "DEDUCTIBLE"
	EventNonTaxable   TaxEventType = "NON_TAXABLE"
)

// Classification distinguishes the tax regime applied to an event.
type Classification string

// Classification constants
const (
	ClassCapital        Classification = "CAPITAL"
	ClassOrdinaryIncome Classification = "ORDINARY_INCOME"
	ClassBusinessIncome Classification = "BUSINESS_INCOME"
	ClassNone           Classification = "NONE"
)

// TaxTreatment is the classifier output for one transaction. Immutable once
// returned; TreatmentReason and ApplicableRules are mandatory for audit.
type TaxTreatment struct {
	EventType          TaxEventType
	Classification     Classification
	IsPersonalUse      bool
	IsCgtEligible      bool
	CgtDiscountApplied bool
	TreatmentReason    string
	ApplicableRules    []string
}

// InvestorType distinguishes personal investors from trading businesses.
type InvestorType string

// Investor type constants
const (
	InvestorPersonal InvestorType = "PERSONAL"
	InvestorBusiness InvestorType = "BUSINESS"
)

// InvestorProfile is optional classifier context. Treated as read-only so it
// can be shared across concurrent classification calls.
type InvestorProfile struct {
	Type          InvestorType
	TradesPerYear int
}

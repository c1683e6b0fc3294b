package domain

// LedgerSnapshot is one persisted ledger state export. Snapshots are
// append-only and keyed by (LedgerID, CreatedAt); State holds the versioned
// JSON produced by the ledger's exporter.
type LedgerSnapshot struct {
	LedgerID  string
	Method    CostBasisMethod
	CreatedAt int64 // Unix milliseconds UTC
	State     []byte
}

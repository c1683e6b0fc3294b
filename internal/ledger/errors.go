package ledger

import "errors"

// Ledger errors.
var (
	// ErrInsufficientLots is returned when a disposal exceeds all recorded
	// acquisitions for an asset. This is fatal to that disposal's
	// calculation: it indicates missing acquisition history and would
	// corrupt the tax result if tolerated.
	ErrInsufficientLots = errors.New("insufficient lots")

	// ErrCorruptSnapshot is returned when ledger state import fails to
	// parse. Import is all-or-nothing and never partially applied.
	ErrCorruptSnapshot = errors.New("corrupt ledger snapshot")

	// ErrUnsupportedMethod is returned for cost-basis methods the ledger
	// does not implement or the jurisdiction does not permit.
	ErrUnsupportedMethod = errors.New("unsupported cost basis method")

	// ErrInvalidDisposal is returned when the disposal transaction carries
	// no positive amount for a known asset.
	ErrInvalidDisposal = errors.New("invalid disposal")
)

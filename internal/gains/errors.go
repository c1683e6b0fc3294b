package gains

import "errors"

// Calculator errors
var (
	ErrNilJurisdiction = errors.New("nil jurisdiction")
	ErrMissingDisposal = errors.New("missing disposal transaction")
	ErrMissingBasis    = errors.New("missing cost basis")
	ErrInvalidProceeds = errors.New("invalid proceeds")
)

package welfare

import "errors"

// Errors returned by the welfare core. Callers match them with errors.Is; the
// wrapped message carries the offending stakeholder, item or size.
var (
	ErrUnknownAttribute    = errors.New("unknown attribute")
	ErrEmptySlate          = errors.New("empty slate")
	ErrInsufficientCatalog = errors.New("insufficient catalog")
	ErrEmptyPool           = errors.New("empty candidate pool")
	ErrUnknownItem         = errors.New("unknown item")
	ErrDuplicateItem       = errors.New("duplicate item")
	ErrInvalidSlateSize    = errors.New("invalid slate size")
	ErrInvalidStakeholders = errors.New("invalid stakeholders")
	ErrInvalidFairness     = errors.New("invalid fairness policy")
	ErrInvalidAttribute    = errors.New("invalid attribute value")
)

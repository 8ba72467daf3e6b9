package domain

import "errors"

// Error taxonomy. Services wrap these with fmt.Errorf("%w: ...") detail; the
// HTTP boundary maps them to status codes via errors.Is and never leaks
// anything else to the caller.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrProviderRejected      = errors.New("payment rejected by provider")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

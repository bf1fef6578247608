package marketplace

import "errors"

var (
	ErrOfferingNotFound   = errors.New("marketplace: offering not found")
	ErrMissingListingData = errors.New("marketplace: missing listing data")
	ErrInsufficientFunds  = errors.New("marketplace: insufficient funds")
	ErrDenomMismatch      = errors.New("marketplace: payment denomination does not match list price")
	ErrDecode             = errors.New("marketplace: decode failure")
	ErrStorageFault       = errors.New("marketplace: storage fault")
	ErrInvalidRequest     = errors.New("marketplace: invalid request")
	ErrAlreadyInitialized = errors.New("marketplace: already initialized")
	ErrNotInitialized     = errors.New("marketplace: not initialized")

	errNilState = errors.New("marketplace engine: state not configured")
	errNilCodec = errors.New("marketplace engine: address codec not configured")
)

// Reason maps an engine error to a stable snake_case label for metrics, logs
// and RPC error data.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOfferingNotFound):
		return "not_found"
	case errors.Is(err, ErrMissingListingData):
		return "missing_listing_data"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDenomMismatch):
		return "denom_mismatch"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrStorageFault):
		return "storage_fault"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	default:
		return "internal"
	}
}

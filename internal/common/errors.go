package common

import "errors"

// Domain errors surfaced by the ledger and shipment services. Handlers map
// these to HTTP status codes; nothing below is retried automatically.
var (
	ErrValidation           = errors.New("invalid input")
	ErrDuplicateSKU         = errors.New("a product with this SKU already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrReferencedByShipment = errors.New("product is part of active shipments")
	ErrNotFound             = errors.New("not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrInvalidTransition    = errors.New("invalid shipment status transition")
)

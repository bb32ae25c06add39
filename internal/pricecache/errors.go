package pricecache

import "errors"

// Failure modes of price derivation and the periodic update pass. Per-token
// derivation failures are logged and skipped by the update loop; ErrEmptyCatalog
// and ErrNoPrices surface to the operator.
var (
	// ErrBadToken reports a malformed CODE:ISSUER identifier.
	ErrBadToken = errors.New("malformed token identifier")

	// ErrNoPaths reports that the path query returned no candidate routes.
	ErrNoPaths = errors.New("no payment paths to USDC")

	// ErrPriceTimeout reports that a derivation exceeded its deadline.
	ErrPriceTimeout = errors.New("price calculation timed out")

	// ErrEmptyCatalog reports that the popularity set held no tokens at
	// update time.
	ErrEmptyCatalog = errors.New("no tokens in popularity set")

	// ErrNoPrices reports a batch in which every derivation failed. It halts
	// the update pass: one token failing is noise, a whole batch failing is
	// an upstream outage.
	ErrNoPrices = errors.New("batch produced no prices")
)

package cryptofl

import "github.com/dark-bio/crypto-fl/internal/fault"

// Error is the error type returned by every package of the module.
type Error = fault.Error

// Kind classifies an Error.
type Kind = fault.Kind

// Error kinds.
const (
	KindMalformed      = fault.KindMalformed
	KindAuthentication = fault.KindAuthentication
	KindFreshness      = fault.KindFreshness
	KindValidity       = fault.KindValidity
	KindStream         = fault.KindStream
	KindUsage          = fault.KindUsage
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMalformed is returned for inputs of the wrong length or with an
	// invalid DER, PEM or CBOR encoding.
	ErrMalformed = fault.ErrMalformed

	// ErrAuthentication is returned when a signature, an AEAD tag or a
	// certificate signature does not verify. It never carries partial output.
	ErrAuthentication = fault.ErrAuthentication

	// ErrFreshness is returned when an authentic envelope was signed outside
	// the allowed clock drift.
	ErrFreshness = fault.ErrFreshness

	// ErrValidity is returned for a certificate validity window that ends
	// before it starts.
	ErrValidity = fault.ErrValidity

	// ErrStream is returned when a chunked ciphertext fails authentication
	// or is truncated.
	ErrStream = fault.ErrStream

	// ErrUsage is returned when a message is addressed to another key or a
	// parameter is out of range.
	ErrUsage = fault.ErrUsage
)

// KindOf returns the kind of err, or zero if err did not come from this module.
func KindOf(err error) Kind {
	return fault.KindOf(err)
}

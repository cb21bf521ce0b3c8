package xdsa

import (
	"encoding/asn1"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

const (
	// SecretKeySize is the size of a composite secret key seed in bytes:
	// the ML-DSA-65 seed followed by the Ed25519 seed.
	SecretKeySize = mldsa65.SeedSize + ed25519.SeedSize

	// PublicKeySize is the size of a composite public key in bytes:
	// the ML-DSA-65 public key followed by the Ed25519 public key.
	PublicKeySize = mldsa65.PublicKeySize + ed25519.PublicKeySize

	// SignatureSize is the size of a composite signature in bytes:
	// the ML-DSA-65 signature followed by the Ed25519 signature.
	SignatureSize = mldsa65.SignatureSize + ed25519.SignatureSize

	// FingerprintSize is the size of a key fingerprint in bytes.
	FingerprintSize = 32
)

// compositePrefix and compositeLabel build the composite message
// representative and separate it from plain ML-DSA or Ed25519 usage.
const (
	compositePrefix = "CompositeAlgorithmSignatures2025"
	compositeLabel  = "COMPSIG-MLDSA65-Ed25519-SHA512"
)

// oid identifies id-MLDSA65-Ed25519-SHA512 in DER structures.
var oid = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 6, 48}

// OID returns the object identifier of the composite algorithm, used for
// both keys and signatures.
func OID() asn1.ObjectIdentifier {
	out := make(asn1.ObjectIdentifier, len(oid))
	copy(out, oid)
	return out
}

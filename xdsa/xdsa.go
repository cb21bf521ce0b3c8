// Package xdsa implements composite ML-DSA-65 + Ed25519 signatures.
//
// A composite signature is valid only when both the post-quantum and the
// classical component verify, so the scheme stays secure as long as either
// algorithm does.
package xdsa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/asn1"
	"encoding/hex"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/pkix"
)

// randReader is the random source used for key generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

// SecretKey is a composite signing key. It is owned by its holder: use
// Clone for an explicit copy and Destroy to overwrite the key material.
type SecretKey struct {
	seed   [SecretKeySize]byte
	mldsa  *mldsa65.PrivateKey
	ed     ed25519.PrivateKey
	public *PublicKey
}

// PublicKey is a composite verification key.
type PublicKey struct {
	raw   [PublicKeySize]byte
	mldsa *mldsa65.PublicKey
	ed    ed25519.PublicKey
}

// Signature is a composite signature.
type Signature [SignatureSize]byte

// Fingerprint is the SHA-256 digest of a public key's byte encoding.
type Fingerprint [FingerprintSize]byte

// GenerateKey creates a new random secret key.
func GenerateKey() (*SecretKey, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	var seed [SecretKeySize]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, fault.Wrap("xdsa.GenerateKey", fault.KindUsage, err, "read random seed")
	}
	sk := NewSecretKey(&seed)
	clear(seed[:])
	return sk, nil
}

// NewSecretKey derives a secret key from a 64-byte seed. The seed is copied.
func NewSecretKey(seed *[SecretKeySize]byte) *SecretKey {
	sk := &SecretKey{seed: *seed}

	var mseed [mldsa65.SeedSize]byte
	copy(mseed[:], seed[:mldsa65.SeedSize])
	mpub, mpriv := mldsa65.NewKeyFromSeed(&mseed)
	clear(mseed[:])

	sk.mldsa = mpriv
	sk.ed = ed25519.NewKeyFromSeed(seed[mldsa65.SeedSize:])

	pk := &PublicKey{mldsa: mpub, ed: sk.ed.Public().(ed25519.PublicKey)}
	mpub.Pack((*[mldsa65.PublicKeySize]byte)(pk.raw[:mldsa65.PublicKeySize]))
	copy(pk.raw[mldsa65.PublicKeySize:], pk.ed)
	sk.public = pk

	return sk
}

// ParseSecretKey parses a 64-byte secret key seed.
func ParseSecretKey(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeySize {
		return nil, fault.Malformed("xdsa.ParseSecretKey", "invalid secret key size: got %d, want %d", len(b), SecretKeySize)
	}
	return NewSecretKey((*[SecretKeySize]byte)(b)), nil
}

// ParseSecretKeyDER parses a PKCS#8 DER encoded secret key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	seed, err := pkix.ParsePrivateKey("xdsa.ParseSecretKeyDER", der, oid, SecretKeySize)
	if err != nil {
		return nil, err
	}
	return NewSecretKey((*[SecretKeySize]byte)(seed)), nil
}

// ParseSecretKeyPEM parses a PEM encoded secret key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	der, err := pkix.DecodePEM("xdsa.ParseSecretKeyPEM", s, pkix.PrivateKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParseSecretKeyDER(der)
}

// Bytes returns a copy of the 64-byte seed.
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, SecretKeySize)
	copy(out, sk.seed[:])
	return out
}

// MarshalDER returns the PKCS#8 DER encoding of the key.
func (sk *SecretKey) MarshalDER() []byte {
	return pkix.MarshalPrivateKey(oid, sk.seed[:])
}

// MarshalPEM returns the PEM encoding of the key.
func (sk *SecretKey) MarshalPEM() string {
	return pkix.EncodePEM(pkix.PrivateKeyBlock, sk.MarshalDER())
}

// PublicKey returns the public half of the key.
func (sk *SecretKey) PublicKey() *PublicKey {
	return sk.public
}

// Fingerprint returns the fingerprint of the public half of the key.
func (sk *SecretKey) Fingerprint() Fingerprint {
	return sk.public.Fingerprint()
}

// Clone returns an independent copy of the key.
func (sk *SecretKey) Clone() *SecretKey {
	return NewSecretKey(&sk.seed)
}

// Destroy overwrites the key material. The key must not be used afterwards.
func (sk *SecretKey) Destroy() {
	clear(sk.seed[:])
	clear(sk.ed)
	if sk.mldsa != nil {
		*sk.mldsa = mldsa65.PrivateKey{}
	}
}

// Sign produces a composite signature over message.
func (sk *SecretKey) Sign(message []byte) (*Signature, error) {
	m := representative(message)

	var sig Signature
	if err := mldsa65.SignTo(sk.mldsa, m, []byte(compositeLabel), false, sig[:mldsa65.SignatureSize]); err != nil {
		return nil, fault.Wrap("xdsa.Sign", fault.KindUsage, err, "ML-DSA signing")
	}
	copy(sig[mldsa65.SignatureSize:], ed25519.Sign(sk.ed, m))
	return &sig, nil
}

// ParsePublicKey parses a 1984-byte public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	const op = "xdsa.ParsePublicKey"

	if len(b) != PublicKeySize {
		return nil, fault.Malformed(op, "invalid public key size: got %d, want %d", len(b), PublicKeySize)
	}
	pk := &PublicKey{mldsa: new(mldsa65.PublicKey)}
	copy(pk.raw[:], b)
	if err := pk.mldsa.UnmarshalBinary(pk.raw[:mldsa65.PublicKeySize]); err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "ML-DSA public key")
	}
	pk.ed = ed25519.PublicKey(pk.raw[mldsa65.PublicKeySize:])
	return pk, nil
}

// ParsePublicKeyDER parses a SubjectPublicKeyInfo DER encoded public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	raw, err := pkix.ParsePublicKey("xdsa.ParsePublicKeyDER", der, oid, PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(raw)
}

// ParsePublicKeyPEM parses a PEM encoded public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	der, err := pkix.DecodePEM("xdsa.ParsePublicKeyPEM", s, pkix.PublicKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyDER(der)
}

// Bytes returns a copy of the 1984-byte encoding of the key.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk.raw[:])
	return out
}

// OID returns the algorithm identifier used when embedding the key in DER.
func (pk *PublicKey) OID() asn1.ObjectIdentifier {
	return OID()
}

// MarshalDER returns the SubjectPublicKeyInfo DER encoding of the key.
func (pk *PublicKey) MarshalDER() []byte {
	return pkix.MarshalPublicKey(oid, pk.raw[:])
}

// MarshalPEM returns the PEM encoding of the key.
func (pk *PublicKey) MarshalPEM() string {
	return pkix.EncodePEM(pkix.PublicKeyBlock, pk.MarshalDER())
}

// Fingerprint returns the SHA-256 digest of the key's byte encoding.
func (pk *PublicKey) Fingerprint() Fingerprint {
	return sha256.Sum256(pk.raw[:])
}

// Equal reports whether pk and other encode the same key.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && subtle.ConstantTimeCompare(pk.raw[:], other.raw[:]) == 1
}

// Verify checks a composite signature over message. Both components must verify.
func (pk *PublicKey) Verify(message []byte, sig *Signature) error {
	m := representative(message)

	mok := mldsa65.Verify(pk.mldsa, m, []byte(compositeLabel), sig[:mldsa65.SignatureSize])
	eok := ed25519.Verify(pk.ed, m, sig[mldsa65.SignatureSize:])
	if !mok || !eok {
		return fault.Authentication("xdsa.Verify", "signature mismatch")
	}
	return nil
}

// ParseSignature parses a 3373-byte composite signature.
func ParseSignature(b []byte) (*Signature, error) {
	if len(b) != SignatureSize {
		return nil, fault.Malformed("xdsa.ParseSignature", "invalid signature size: got %d, want %d", len(b), SignatureSize)
	}
	var sig Signature
	copy(sig[:], b)
	return &sig, nil
}

// Bytes returns a copy of the signature encoding.
func (s *Signature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, s[:])
	return out
}

// ParseFingerprint parses a 32-byte fingerprint.
func ParseFingerprint(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != FingerprintSize {
		return fp, fault.Malformed("xdsa.ParseFingerprint", "invalid fingerprint size: got %d, want %d", len(b), FingerprintSize)
	}
	copy(fp[:], b)
	return fp, nil
}

// Bytes returns a copy of the fingerprint.
func (fp Fingerprint) Bytes() []byte {
	return append([]byte(nil), fp[:]...)
}

// String returns the fingerprint as lowercase hex.
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// representative builds the composite message representative
// prefix || label || len(ctx) || ctx || SHA-512(message) with an empty context.
func representative(message []byte) []byte {
	digest := sha512.Sum512(message)

	m := make([]byte, 0, len(compositePrefix)+len(compositeLabel)+1+len(digest))
	m = append(m, compositePrefix...)
	m = append(m, compositeLabel...)
	m = append(m, 0)
	m = append(m, digest[:]...)
	return m
}

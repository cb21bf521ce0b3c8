// Package rsa implements RSA-2048 PKCS#1 v1.5 signatures over SHA-256 with
// fixed-length key encodings.
//
// It exists for interoperability with classical systems; new protocols
// should sign with xdsa.
package rsa

import (
	"crypto"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/big"

	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/pkix"
)

const (
	// Bits is the modulus size.
	Bits = 2048

	primeSize    = Bits / 16
	modulusSize  = Bits / 8
	exponentSize = 8

	// SecretKeySize is the size of an encoded secret key: p || q || d || e.
	SecretKeySize = 2*primeSize + modulusSize + exponentSize
	// PublicKeySize is the size of an encoded public key: n || e.
	PublicKeySize = modulusSize + exponentSize
	// SignatureSize is the size of a signature in bytes.
	SignatureSize = modulusSize
	// FingerprintSize is the size of a key fingerprint in bytes.
	FingerprintSize = 32
)

// randReader is the random source used for key generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

// SecretKey is an RSA-2048 signing key.
type SecretKey struct {
	key *stdrsa.PrivateKey
}

// PublicKey is an RSA-2048 verification key.
type PublicKey struct {
	key *stdrsa.PublicKey
}

// Signature is a PKCS#1 v1.5 signature.
type Signature [SignatureSize]byte

// Fingerprint is the SHA-256 digest of a public key's byte encoding.
type Fingerprint [FingerprintSize]byte

// GenerateKey creates a new random secret key.
func GenerateKey() (*SecretKey, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	for {
		key, err := stdrsa.GenerateKey(r, Bits)
		if err != nil {
			return nil, fault.Wrap("rsa.GenerateKey", fault.KindUsage, err, "generate key")
		}
		// The fixed encoding needs both primes at full width and e to fit.
		if len(key.Primes) == 2 && key.Primes[0].BitLen() == Bits/2 && key.Primes[1].BitLen() == Bits/2 {
			return &SecretKey{key: key}, nil
		}
	}
}

// ParseSecretKey parses a 520-byte p || q || d || e encoding.
func ParseSecretKey(b []byte) (*SecretKey, error) {
	const op = "rsa.ParseSecretKey"

	if len(b) != SecretKeySize {
		return nil, fault.Malformed(op, "invalid secret key size: got %d, want %d", len(b), SecretKeySize)
	}
	p := new(big.Int).SetBytes(b[:primeSize])
	q := new(big.Int).SetBytes(b[primeSize : 2*primeSize])
	d := new(big.Int).SetBytes(b[2*primeSize : 2*primeSize+modulusSize])
	e, err := parseExponent(op, b[2*primeSize+modulusSize:])
	if err != nil {
		return nil, err
	}
	key := &stdrsa.PrivateKey{
		PublicKey: stdrsa.PublicKey{N: new(big.Int).Mul(p, q), E: e},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	return newSecretKey(op, key)
}

// ParseSecretKeyDER parses a PKCS#8 DER encoded secret key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	const op = "rsa.ParseSecretKeyDER"

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "PKCS#8")
	}
	key, ok := parsed.(*stdrsa.PrivateKey)
	if !ok {
		return nil, fault.Malformed(op, "unexpected key type %T", parsed)
	}
	return newSecretKey(op, key)
}

// ParseSecretKeyPEM parses a PEM encoded secret key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	der, err := pkix.DecodePEM("rsa.ParseSecretKeyPEM", s, pkix.PrivateKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParseSecretKeyDER(der)
}

func newSecretKey(op string, key *stdrsa.PrivateKey) (*SecretKey, error) {
	if key.N.BitLen() != Bits || len(key.Primes) != 2 {
		return nil, fault.Malformed(op, "want a two-prime %d-bit key", Bits)
	}
	if key.Primes[0].BitLen() > Bits/2 || key.Primes[1].BitLen() > Bits/2 {
		return nil, fault.Malformed(op, "prime wider than %d bits", Bits/2)
	}
	if err := key.Validate(); err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "inconsistent key")
	}
	key.Precompute()
	return &SecretKey{key: key}, nil
}

// Bytes returns the 520-byte p || q || d || e encoding.
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, SecretKeySize)
	sk.key.Primes[0].FillBytes(out[:primeSize])
	sk.key.Primes[1].FillBytes(out[primeSize : 2*primeSize])
	sk.key.D.FillBytes(out[2*primeSize : 2*primeSize+modulusSize])
	binary.BigEndian.PutUint64(out[2*primeSize+modulusSize:], uint64(sk.key.E))
	return out
}

// MarshalDER returns the PKCS#8 DER encoding of the key.
func (sk *SecretKey) MarshalDER() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(sk.key)
	if err != nil {
		// Validated RSA keys always marshal.
		panic("rsa: marshal PKCS#8: " + err.Error())
	}
	return der
}

// MarshalPEM returns the PEM encoding of the key.
func (sk *SecretKey) MarshalPEM() string {
	return pkix.EncodePEM(pkix.PrivateKeyBlock, sk.MarshalDER())
}

// PublicKey returns the public half of the key.
func (sk *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{key: &sk.key.PublicKey}
}

// Fingerprint returns the fingerprint of the public half of the key.
func (sk *SecretKey) Fingerprint() Fingerprint {
	return sk.PublicKey().Fingerprint()
}

// Sign produces a PKCS#1 v1.5 signature over the SHA-256 digest of message.
func (sk *SecretKey) Sign(message []byte) (*Signature, error) {
	digest := sha256.Sum256(message)
	raw, err := stdrsa.SignPKCS1v15(nil, sk.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fault.Wrap("rsa.Sign", fault.KindUsage, err, "sign")
	}
	var sig Signature
	copy(sig[:], raw)
	return &sig, nil
}

// ParsePublicKey parses a 264-byte n || e encoding.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	const op = "rsa.ParsePublicKey"

	if len(b) != PublicKeySize {
		return nil, fault.Malformed(op, "invalid public key size: got %d, want %d", len(b), PublicKeySize)
	}
	e, err := parseExponent(op, b[modulusSize:])
	if err != nil {
		return nil, err
	}
	return newPublicKey(op, &stdrsa.PublicKey{N: new(big.Int).SetBytes(b[:modulusSize]), E: e})
}

// ParsePublicKeyDER parses a SubjectPublicKeyInfo DER encoded public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	const op = "rsa.ParsePublicKeyDER"

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "SubjectPublicKeyInfo")
	}
	key, ok := parsed.(*stdrsa.PublicKey)
	if !ok {
		return nil, fault.Malformed(op, "unexpected key type %T", parsed)
	}
	return newPublicKey(op, key)
}

// ParsePublicKeyPEM parses a PEM encoded public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	der, err := pkix.DecodePEM("rsa.ParsePublicKeyPEM", s, pkix.PublicKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyDER(der)
}

func newPublicKey(op string, key *stdrsa.PublicKey) (*PublicKey, error) {
	if key.N.BitLen() != Bits {
		return nil, fault.Malformed(op, "want a %d-bit modulus, got %d", Bits, key.N.BitLen())
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the 264-byte n || e encoding.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	pk.key.N.FillBytes(out[:modulusSize])
	binary.BigEndian.PutUint64(out[modulusSize:], uint64(pk.key.E))
	return out
}

// MarshalDER returns the SubjectPublicKeyInfo DER encoding of the key.
func (pk *PublicKey) MarshalDER() []byte {
	der, err := x509.MarshalPKIXPublicKey(pk.key)
	if err != nil {
		panic("rsa: marshal PKIX: " + err.Error())
	}
	return der
}

// MarshalPEM returns the PEM encoding of the key.
func (pk *PublicKey) MarshalPEM() string {
	return pkix.EncodePEM(pkix.PublicKeyBlock, pk.MarshalDER())
}

// Fingerprint returns the SHA-256 digest of the key's byte encoding.
func (pk *PublicKey) Fingerprint() Fingerprint {
	return sha256.Sum256(pk.Bytes())
}

// Equal reports whether pk and other encode the same key.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && subtle.ConstantTimeCompare(pk.Bytes(), other.Bytes()) == 1
}

// Verify checks a PKCS#1 v1.5 signature over the SHA-256 digest of message.
func (pk *PublicKey) Verify(message []byte, sig *Signature) error {
	digest := sha256.Sum256(message)
	if err := stdrsa.VerifyPKCS1v15(pk.key, crypto.SHA256, digest[:], sig[:]); err != nil {
		return fault.Authentication("rsa.Verify", "signature mismatch")
	}
	return nil
}

// ParseSignature parses a 256-byte signature.
func ParseSignature(b []byte) (*Signature, error) {
	if len(b) != SignatureSize {
		return nil, fault.Malformed("rsa.ParseSignature", "invalid signature size: got %d, want %d", len(b), SignatureSize)
	}
	var sig Signature
	copy(sig[:], b)
	return &sig, nil
}

// Bytes returns a copy of the signature encoding.
func (s *Signature) Bytes() []byte {
	return append([]byte(nil), s[:]...)
}

// ParseFingerprint parses a 32-byte fingerprint.
func ParseFingerprint(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != FingerprintSize {
		return fp, fault.Malformed("rsa.ParseFingerprint", "invalid fingerprint size: got %d, want %d", len(b), FingerprintSize)
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

func parseExponent(op string, b []byte) (int, error) {
	e := binary.BigEndian.Uint64(b)
	if e < 3 || e > 1<<31-1 || e%2 == 0 {
		return 0, fault.Malformed(op, "invalid public exponent %d", e)
	}
	return int(e), nil
}

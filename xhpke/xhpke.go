// Package xhpke implements hybrid public-key encryption over the X-Wing KEM
// (ML-KEM-768 + X25519).
//
// Each message is encrypted under a fresh encapsulation:
//
//  1. X-Wing encapsulation to the recipient's public key
//  2. HKDF-SHA-512 key derivation from the shared secret, the encapsulated
//     key and the caller's domain separator
//  3. ChaCha20-Poly1305 encryption of the message, authenticating the
//     caller's additional data
//
// The derived key is used exactly once, so the AEAD nonce is fixed to zero.
package xhpke

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/asn1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/xwing"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dark-bio/crypto-fl/hkdf"
	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/pkix"
)

const (
	// SecretKeySize is the size of an X-Wing secret key seed in bytes.
	SecretKeySize = 32
	// PublicKeySize is the size of an X-Wing public key in bytes.
	PublicKeySize = 1216
	// SessionKeySize is the size of the per-message encapsulated key in bytes.
	SessionKeySize = 1120
	// FingerprintSize is the size of a key fingerprint in bytes.
	FingerprintSize = 32

	// kdfContext is the HKDF info prefix used for domain separation.
	kdfContext = "dark-bio/xhpke/v1"
)

// oid identifies X-Wing keys in DER structures.
var oid = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 62253, 25722}

var scheme = xwing.Scheme()

// randReader is the random source used for key generation and encapsulation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func init() {
	if scheme.PublicKeySize() != PublicKeySize ||
		scheme.CiphertextSize() != SessionKeySize ||
		scheme.SeedSize() != SecretKeySize {
		panic(fmt.Sprintf("xhpke: unexpected %s parameters", scheme.Name()))
	}
}

// SecretKey is an X-Wing decryption key. It is owned by its holder: use
// Clone for an explicit copy and Destroy to overwrite the key material.
type SecretKey struct {
	seed   [SecretKeySize]byte
	priv   kem.PrivateKey
	public *PublicKey
}

// PublicKey is an X-Wing encryption key.
type PublicKey struct {
	raw [PublicKeySize]byte
	pub kem.PublicKey
}

// Fingerprint is the SHA-256 digest of a public key's byte encoding.
type Fingerprint [FingerprintSize]byte

func random(n int) ([]byte, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// GenerateKey creates a new random secret key.
func GenerateKey() (*SecretKey, error) {
	seed, err := random(SecretKeySize)
	if err != nil {
		return nil, fault.Wrap("xhpke.GenerateKey", fault.KindUsage, err, "read random seed")
	}
	defer clear(seed)
	return NewSecretKey((*[SecretKeySize]byte)(seed)), nil
}

// NewSecretKey derives a secret key from a 32-byte seed. The seed is copied.
func NewSecretKey(seed *[SecretKeySize]byte) *SecretKey {
	pub, priv := scheme.DeriveKeyPair(seed[:])

	pk := &PublicKey{pub: pub}
	raw, err := pub.MarshalBinary()
	if err != nil {
		// Keys derived by the scheme always marshal.
		panic(fmt.Sprintf("xhpke: marshal derived public key: %v", err))
	}
	copy(pk.raw[:], raw)

	return &SecretKey{seed: *seed, priv: priv, public: pk}
}

// ParseSecretKey parses a 32-byte secret key seed.
func ParseSecretKey(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeySize {
		return nil, fault.Malformed("xhpke.ParseSecretKey", "invalid secret key size: got %d, want %d", len(b), SecretKeySize)
	}
	return NewSecretKey((*[SecretKeySize]byte)(b)), nil
}

// ParseSecretKeyDER parses a PKCS#8 DER encoded secret key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	seed, err := pkix.ParsePrivateKey("xhpke.ParseSecretKeyDER", der, oid, SecretKeySize)
	if err != nil {
		return nil, err
	}
	return NewSecretKey((*[SecretKeySize]byte)(seed)), nil
}

// ParseSecretKeyPEM parses a PEM encoded secret key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	der, err := pkix.DecodePEM("xhpke.ParseSecretKeyPEM", s, pkix.PrivateKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParseSecretKeyDER(der)
}

// Bytes returns a copy of the 32-byte seed.
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

// Destroy overwrites the seed and drops the expanded key. The key must not
// be used afterwards.
func (sk *SecretKey) Destroy() {
	clear(sk.seed[:])
	sk.priv = nil
}

// Open decrypts a message sealed to this key's public half. The aad and
// domain must match the values used when sealing.
func (sk *SecretKey) Open(sessionKey, ciphertext, aad, domain []byte) ([]byte, error) {
	const op = "xhpke.Open"

	if len(sessionKey) != SessionKeySize {
		return nil, fault.Malformed(op, "invalid session key size: got %d, want %d", len(sessionKey), SessionKeySize)
	}
	if sk.priv == nil {
		return nil, fault.Usage(op, "secret key has been destroyed")
	}

	// 1. KEM Decapsulation
	sharedSecret, err := scheme.Decapsulate(sk.priv, sessionKey)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "decapsulate")
	}
	defer clear(sharedSecret)

	// 2. Key Derivation
	key, err := deriveKey(sharedSecret, sessionKey, domain)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	defer clear(key)

	// 3. AEAD Decryption
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindUsage, err, "create cipher")
	}
	plaintext, err := aead.Open(nil, make([]byte, chacha20poly1305.NonceSize), ciphertext, aad)
	if err != nil {
		return nil, fault.Authentication(op, "message authentication failed")
	}
	return plaintext, nil
}

// ParsePublicKey parses a 1216-byte public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	const op = "xhpke.ParsePublicKey"

	if len(b) != PublicKeySize {
		return nil, fault.Malformed(op, "invalid public key size: got %d, want %d", len(b), PublicKeySize)
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(b)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindMalformed, err, "X-Wing public key")
	}
	pk := &PublicKey{pub: pub}
	copy(pk.raw[:], b)
	return pk, nil
}

// ParsePublicKeyDER parses a SubjectPublicKeyInfo DER encoded public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	raw, err := pkix.ParsePublicKey("xhpke.ParsePublicKeyDER", der, oid, PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(raw)
}

// ParsePublicKeyPEM parses a PEM encoded public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	der, err := pkix.DecodePEM("xhpke.ParsePublicKeyPEM", s, pkix.PublicKeyBlock)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyDER(der)
}

// Bytes returns a copy of the 1216-byte encoding of the key.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk.raw[:])
	return out
}

// OID returns the algorithm identifier used when embedding the key in DER.
func (pk *PublicKey) OID() asn1.ObjectIdentifier {
	return OID()
}

// OID returns the object identifier of X-Wing keys.
func OID() asn1.ObjectIdentifier {
	out := make(asn1.ObjectIdentifier, len(oid))
	copy(out, oid)
	return out
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

// Seal encrypts msg to this key, authenticating aad and binding domain into
// the key schedule. It returns the encapsulated session key and the ciphertext.
func (pk *PublicKey) Seal(msg, aad, domain []byte) ([SessionKeySize]byte, []byte, error) {
	const op = "xhpke.Seal"

	var sessionKey [SessionKeySize]byte

	seed, err := random(scheme.EncapsulationSeedSize())
	if err != nil {
		return sessionKey, nil, fault.Wrap(op, fault.KindUsage, err, "read encapsulation seed")
	}
	defer clear(seed)

	// 1. KEM Encapsulation
	ct, sharedSecret, err := scheme.EncapsulateDeterministically(pk.pub, seed)
	if err != nil {
		return sessionKey, nil, fault.Wrap(op, fault.KindUsage, err, "encapsulate")
	}
	defer clear(sharedSecret)
	copy(sessionKey[:], ct)

	// 2. Key Derivation
	key, err := deriveKey(sharedSecret, ct, domain)
	if err != nil {
		return sessionKey, nil, fault.WithOp(err, op)
	}
	defer clear(key)

	// 3. AEAD Encryption
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return sessionKey, nil, fault.Wrap(op, fault.KindUsage, err, "create cipher")
	}
	ciphertext := aead.Seal(nil, make([]byte, chacha20poly1305.NonceSize), msg, aad)
	return sessionKey, ciphertext, nil
}

// ParseFingerprint parses a 32-byte fingerprint.
func ParseFingerprint(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != FingerprintSize {
		return fp, fault.Malformed("xhpke.ParseFingerprint", "invalid fingerprint size: got %d, want %d", len(b), FingerprintSize)
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

// deriveKey performs the HKDF-SHA-512 step of the key schedule.
//
// The key derivation uses:
//   - IKM (input key material): the KEM shared secret
//   - Salt: SHA-256 hash of the encapsulated key
//   - Info: context string || domain length (4 bytes BE) || domain
func deriveKey(sharedSecret, sessionKey, domain []byte) ([]byte, error) {
	salt := sha256.Sum256(sessionKey)

	info := make([]byte, 0, len(kdfContext)+4+len(domain))
	info = append(info, kdfContext...)
	info = binary.BigEndian.AppendUint32(info, uint32(len(domain)))
	info = append(info, domain...)

	return hkdf.Key(sharedSecret, salt[:], info, chacha20poly1305.KeySize)
}

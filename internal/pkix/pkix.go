// Package pkix encodes fixed-length key material as SubjectPublicKeyInfo and
// PKCS#8 DER structures, and wraps them in PEM.
package pkix

import (
	"encoding/asn1"
	"encoding/pem"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

// PEM block types.
const (
	PublicKeyBlock   = "PUBLIC KEY"
	PrivateKeyBlock  = "PRIVATE KEY"
	CertificateBlock = "CERTIFICATE"
)

// AddAlgorithmIdentifier appends an AlgorithmIdentifier with absent parameters.
func AddAlgorithmIdentifier(b *cryptobyte.Builder, oid asn1.ObjectIdentifier) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oid)
	})
}

// ReadAlgorithmIdentifier reads an AlgorithmIdentifier and requires that it
// names oid with absent parameters.
func ReadAlgorithmIdentifier(s *cryptobyte.String, oid asn1.ObjectIdentifier) bool {
	var alg cryptobyte.String
	var got asn1.ObjectIdentifier
	if !s.ReadASN1(&alg, cbasn1.SEQUENCE) || !alg.ReadASN1ObjectIdentifier(&got) || !alg.Empty() {
		return false
	}
	return got.Equal(oid)
}

// AddSubjectPublicKeyInfo appends a SubjectPublicKeyInfo for key.
func AddSubjectPublicKeyInfo(b *cryptobyte.Builder, oid asn1.ObjectIdentifier, key []byte) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		AddAlgorithmIdentifier(b, oid)
		b.AddASN1BitString(key)
	})
}

// MarshalPublicKey returns the DER SubjectPublicKeyInfo of key.
func MarshalPublicKey(oid asn1.ObjectIdentifier, key []byte) []byte {
	var b cryptobyte.Builder
	AddSubjectPublicKeyInfo(&b, oid, key)
	return b.BytesOrPanic()
}

// ParsePublicKey extracts the key bits of a DER SubjectPublicKeyInfo, which
// must name oid and carry exactly size bytes.
func ParsePublicKey(op string, der []byte, oid asn1.ObjectIdentifier, size int) ([]byte, error) {
	input := cryptobyte.String(der)
	var spki cryptobyte.String
	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fault.Malformed(op, "invalid SubjectPublicKeyInfo")
	}
	key, err := ReadSubjectPublicKey(op, &spki, oid, size)
	if err != nil {
		return nil, err
	}
	if !spki.Empty() {
		return nil, fault.Malformed(op, "trailing data in SubjectPublicKeyInfo")
	}
	return key, nil
}

// ReadSubjectPublicKey reads the contents of a SubjectPublicKeyInfo sequence.
func ReadSubjectPublicKey(op string, spki *cryptobyte.String, oid asn1.ObjectIdentifier, size int) ([]byte, error) {
	if !ReadAlgorithmIdentifier(spki, oid) {
		return nil, fault.Malformed(op, "unexpected public key algorithm, want %v", oid)
	}
	var bits asn1.BitString
	if !spki.ReadASN1BitString(&bits) || bits.BitLength%8 != 0 {
		return nil, fault.Malformed(op, "invalid public key bit string")
	}
	if len(bits.Bytes) != size {
		return nil, fault.Malformed(op, "invalid public key size: got %d, want %d", len(bits.Bytes), size)
	}
	return bits.Bytes, nil
}

// MarshalPrivateKey returns the DER PKCS#8 OneAsymmetricKey holding seed.
func MarshalPrivateKey(oid asn1.ObjectIdentifier, seed []byte) []byte {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		AddAlgorithmIdentifier(b, oid)
		b.AddASN1OctetString(seed)
	})
	return b.BytesOrPanic()
}

// ParsePrivateKey extracts the seed of a DER PKCS#8 structure, which must
// name oid and carry exactly size bytes.
func ParsePrivateKey(op string, der []byte, oid asn1.ObjectIdentifier, size int) ([]byte, error) {
	input := cryptobyte.String(der)
	var (
		p8      cryptobyte.String
		version int64
		seed    []byte
	)
	if !input.ReadASN1(&p8, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fault.Malformed(op, "invalid PKCS#8 structure")
	}
	if !p8.ReadASN1Integer(&version) || version != 0 {
		return nil, fault.Malformed(op, "unsupported PKCS#8 version")
	}
	if !ReadAlgorithmIdentifier(&p8, oid) {
		return nil, fault.Malformed(op, "unexpected private key algorithm, want %v", oid)
	}
	if !p8.ReadASN1Bytes(&seed, cbasn1.OCTET_STRING) || !p8.Empty() {
		return nil, fault.Malformed(op, "invalid private key octet string")
	}
	if len(seed) != size {
		return nil, fault.Malformed(op, "invalid private key size: got %d, want %d", len(seed), size)
	}
	return seed, nil
}

// EncodePEM wraps der in a PEM block of the given type.
func EncodePEM(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}

// DecodePEM unwraps a single PEM block of the given type. Surrounding
// whitespace is allowed, any other trailing data is not.
func DecodePEM(op, data, blockType string) ([]byte, error) {
	block, rest := pem.Decode([]byte(data))
	if block == nil {
		return nil, fault.Malformed(op, "no PEM block found")
	}
	if block.Type != blockType {
		return nil, fault.Malformed(op, "unexpected PEM block %q, want %q", block.Type, blockType)
	}
	if len(block.Headers) != 0 {
		return nil, fault.Malformed(op, "unexpected PEM headers")
	}
	if strings.TrimSpace(string(rest)) != "" {
		return nil, fault.Malformed(op, "trailing data after PEM block")
	}
	return block.Bytes, nil
}

// IsPEM reports whether data looks like PEM text rather than DER.
func IsPEM(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "-----BEGIN ")
}

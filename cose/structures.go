package cose

import (
	"github.com/dark-bio/crypto-fl/cbor"
	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

// Algorithm identifiers from the COSE private-use range.
const (
	// AlgorithmXDSA identifies composite ML-DSA-65 + Ed25519 signatures.
	AlgorithmXDSA int64 = -70000
	// AlgorithmXHPKE identifies X-Wing hybrid public-key encryption.
	AlgorithmXHPKE int64 = -70001
)

// CBOR tags of the envelope structures (RFC 9052).
const (
	tagEncrypt0 = 16
	tagSign1    = 18
)

// Context strings of the authenticated structures.
const (
	contextSignature1 = "Signature1"
	contextEncrypt0   = "Encrypt0"
)

// sigHeader is the protected header of a Sign1 envelope.
type sigHeader struct {
	Algorithm int64  `cbor:"1,keyasint"`
	KeyID     []byte `cbor:"4,keyasint"`
	Timestamp uint64 `cbor:"-70002,keyasint"`
}

// encHeader is the protected header of an Encrypt0 envelope.
type encHeader struct {
	Algorithm int64  `cbor:"1,keyasint"`
	KeyID     []byte `cbor:"4,keyasint"`
}

// encUnprotected carries the encapsulated key of an Encrypt0 envelope.
type encUnprotected struct {
	EncapsulatedKey []byte `cbor:"-4,keyasint"`
}

// sign1 is the untagged COSE_Sign1 array. A nil Payload encodes as null and
// marks a detached envelope.
type sign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[int64]any
	Payload     []byte
	Signature   []byte
}

// encrypt0 is the untagged COSE_Encrypt0 array.
type encrypt0 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected encUnprotected
	Ciphertext  []byte
}

// orEmpty maps nil to an empty byte string so it never encodes as null.
func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// sigStructure returns the bytes covered by a Sign1 signature.
func sigStructure(protected, payload, aad, domain []byte) ([]byte, error) {
	return cbor.Marshal([]any{
		contextSignature1,
		protected,
		orEmpty(payload),
		orEmpty(aad),
		orEmpty(domain),
	})
}

// encStructure returns the associated data of an Encrypt0 ciphertext.
func encStructure(protected, aad []byte) ([]byte, error) {
	return cbor.Marshal([]any{contextEncrypt0, protected, orEmpty(aad)})
}

func marshalSign1(msg *sign1) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{Number: tagSign1, Content: msg})
}

func marshalEncrypt0(msg *encrypt0) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{Number: tagEncrypt0, Content: msg})
}

// untag strips the expected CBOR tag and returns the tagged content.
func untag(op string, data []byte, number uint64) ([]byte, error) {
	var raw cbor.RawTag
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fault.WithOp(err, op)
	}
	if raw.Number != number {
		return nil, fault.Malformed(op, "unexpected CBOR tag %d, want %d", raw.Number, number)
	}
	return raw.Content, nil
}

// parseSign1 decodes a tagged Sign1 envelope and its protected header. It
// checks structure only, never the signature.
func parseSign1(op string, data []byte) (*sign1, *sigHeader, error) {
	content, err := untag(op, data, tagSign1)
	if err != nil {
		return nil, nil, err
	}
	msg := new(sign1)
	if err := cbor.Unmarshal(content, msg); err != nil {
		return nil, nil, fault.WithOp(err, op)
	}
	if msg.Unprotected == nil || len(msg.Unprotected) != 0 {
		return nil, nil, fault.Malformed(op, "unexpected unprotected header")
	}
	if len(msg.Signature) != xdsa.SignatureSize {
		return nil, nil, fault.Malformed(op, "invalid signature size: got %d, want %d", len(msg.Signature), xdsa.SignatureSize)
	}
	header := new(sigHeader)
	if err := cbor.Unmarshal(msg.Protected, header); err != nil {
		return nil, nil, fault.WithOp(err, op)
	}
	if header.Algorithm != AlgorithmXDSA {
		return nil, nil, fault.Malformed(op, "unsupported algorithm %d", header.Algorithm)
	}
	if len(header.KeyID) != xdsa.FingerprintSize {
		return nil, nil, fault.Malformed(op, "invalid key id size: got %d, want %d", len(header.KeyID), xdsa.FingerprintSize)
	}
	return msg, header, nil
}

// parseEncrypt0 decodes a tagged Encrypt0 envelope and its protected header.
func parseEncrypt0(op string, data []byte) (*encrypt0, *encHeader, error) {
	content, err := untag(op, data, tagEncrypt0)
	if err != nil {
		return nil, nil, err
	}
	msg := new(encrypt0)
	if err := cbor.Unmarshal(content, msg); err != nil {
		return nil, nil, fault.WithOp(err, op)
	}
	if len(msg.Unprotected.EncapsulatedKey) != xhpke.SessionKeySize {
		return nil, nil, fault.Malformed(op, "invalid encapsulated key size: got %d, want %d", len(msg.Unprotected.EncapsulatedKey), xhpke.SessionKeySize)
	}
	if msg.Ciphertext == nil {
		return nil, nil, fault.Malformed(op, "missing ciphertext")
	}
	header := new(encHeader)
	if err := cbor.Unmarshal(msg.Protected, header); err != nil {
		return nil, nil, fault.WithOp(err, op)
	}
	if header.Algorithm != AlgorithmXHPKE {
		return nil, nil, fault.Malformed(op, "unsupported algorithm %d", header.Algorithm)
	}
	if len(header.KeyID) != xhpke.FingerprintSize {
		return nil, nil, fault.Malformed(op, "invalid key id size: got %d, want %d", len(header.KeyID), xhpke.FingerprintSize)
	}
	return msg, header, nil
}

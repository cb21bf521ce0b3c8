// Package cose implements signed and encrypted message envelopes in the
// style of RFC 9052, over composite xDSA signatures and X-Wing hybrid
// encryption.
//
// A signed envelope is a COSE_Sign1 structure. Its signature covers the
// protected header (algorithm, signer fingerprint, signing time), the
// embedded payload, caller supplied additional authenticated data and a
// domain separator. Neither the aad nor the domain is carried in the
// envelope; the verifier must supply the same values.
//
// An encrypted envelope is a COSE_Encrypt0 structure that wraps a signed
// envelope for a single recipient. Seal and Open combine both layers and
// are the recommended entry points:
//
//	msg, err := cose.Seal(payload, aad, senderKey, recipientPub, domain)
//	...
//	payload, err := cose.Open(msg, aad, recipientKey, senderPub, domain,
//		cose.WithMaxDrift(5*time.Minute))
//
// Signer, Peek and Recipient inspect envelopes without any cryptographic
// check. Their results are untrusted until a subsequent Verify or Open
// succeeds.
package cose

import (
	"bytes"

	"github.com/dark-bio/crypto-fl/cbor"
	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/xdsa"
)

// Sign creates a COSE_Sign1 envelope embedding payload. The aad and domain
// are authenticated but not embedded.
func Sign(payload, aad []byte, signer *xdsa.SecretKey, domain []byte, opts ...Option) ([]byte, error) {
	return sign("cose.Sign", orEmpty(payload), aad, signer, domain, newConfig(opts))
}

// SignDetached creates a COSE_Sign1 envelope without a payload. The signed
// message is aad, which the verifier must obtain out of band.
func SignDetached(aad []byte, signer *xdsa.SecretKey, domain []byte, opts ...Option) ([]byte, error) {
	return sign("cose.SignDetached", nil, aad, signer, domain, newConfig(opts))
}

func sign(op string, payload, aad []byte, signer *xdsa.SecretKey, domain []byte, cfg *config) ([]byte, error) {
	fp := signer.Fingerprint()
	protected, err := cbor.Marshal(&sigHeader{
		Algorithm: AlgorithmXDSA,
		KeyID:     fp[:],
		Timestamp: unixSeconds(cfg.now()),
	})
	if err != nil {
		return nil, fault.WithOp(err, op)
	}

	tbs, err := sigStructure(protected, payload, aad, domain)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	sig, err := signer.Sign(tbs)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}

	out, err := marshalSign1(&sign1{
		Protected:   protected,
		Unprotected: map[int64]any{},
		Payload:     payload,
		Signature:   sig[:],
	})
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	return out, nil
}

// Verify checks a COSE_Sign1 envelope with an embedded payload and returns
// the payload. The checks run in a fixed order, each reported with its own
// error kind: structure (malformed), signer fingerprint against verifier
// (usage), signature over aad and domain (authentication) and, with
// WithMaxDrift, the signing time (freshness). No payload is returned on
// any failure.
func Verify(msg, aad []byte, verifier *xdsa.PublicKey, domain []byte, opts ...Option) ([]byte, error) {
	env, err := verify("cose.Verify", msg, false, aad, verifier, domain, newConfig(opts))
	if err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// VerifyDetached checks a detached COSE_Sign1 envelope against aad, the
// message that was signed.
func VerifyDetached(msg, aad []byte, verifier *xdsa.PublicKey, domain []byte, opts ...Option) error {
	_, err := verify("cose.VerifyDetached", msg, true, aad, verifier, domain, newConfig(opts))
	return err
}

func verify(op string, msg []byte, detached bool, aad []byte, verifier *xdsa.PublicKey, domain []byte, cfg *config) (*sign1, error) {
	env, header, err := parseSign1(op, msg)
	if err != nil {
		return nil, err
	}
	switch {
	case detached && env.Payload != nil:
		return nil, fault.Malformed(op, "envelope has an embedded payload")
	case !detached && env.Payload == nil:
		return nil, fault.Malformed(op, "envelope has a detached payload")
	}

	fp := verifier.Fingerprint()
	if !bytes.Equal(header.KeyID, fp[:]) {
		return nil, fault.Usage(op, "envelope signed by %x, not by verifier %s", header.KeyID, fp)
	}

	tbs, err := sigStructure(env.Protected, env.Payload, aad, domain)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	sig, err := xdsa.ParseSignature(env.Signature)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	if err := verifier.Verify(tbs, sig); err != nil {
		return nil, fault.Authentication(op, "signature mismatch")
	}

	if !cfg.fresh(header.Timestamp) {
		return nil, fault.New(op, fault.KindFreshness, "signed at %d, more than %v from now", header.Timestamp, cfg.maxDrift)
	}
	return env, nil
}

// Signer returns the fingerprint of the key that claims to have signed a
// COSE_Sign1 envelope. The signature is not checked.
func Signer(msg []byte) (xdsa.Fingerprint, error) {
	_, header, err := parseSign1("cose.Signer", msg)
	if err != nil {
		return xdsa.Fingerprint{}, err
	}
	return xdsa.Fingerprint(header.KeyID), nil
}

// Peek returns the embedded payload of a COSE_Sign1 envelope. The signature
// is not checked: the payload is unauthenticated until Verify succeeds.
func Peek(msg []byte) ([]byte, error) {
	env, _, err := parseSign1("cose.Peek", msg)
	if err != nil {
		return nil, err
	}
	if env.Payload == nil {
		return nil, fault.Malformed("cose.Peek", "envelope has a detached payload")
	}
	return env.Payload, nil
}

// Timestamp returns the claimed signing time of a COSE_Sign1 envelope, in
// Unix seconds. The signature is not checked.
func Timestamp(msg []byte) (uint64, error) {
	_, header, err := parseSign1("cose.Timestamp", msg)
	if err != nil {
		return 0, err
	}
	return header.Timestamp, nil
}

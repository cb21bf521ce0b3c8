package cose

import (
	"bytes"

	"github.com/dark-bio/crypto-fl/cbor"
	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

// Encrypt wraps an existing COSE_Sign1 envelope into a COSE_Encrypt0
// envelope for recipient. It is meant for forwarding a message obtained
// from Decrypt to a new recipient without the original signer's key; for
// new messages use Seal.
func Encrypt(signed, aad []byte, recipient *xhpke.PublicKey, domain []byte) ([]byte, error) {
	const op = "cose.Encrypt"

	if _, _, err := parseSign1(op, signed); err != nil {
		return nil, err
	}
	return encrypt(op, signed, aad, recipient, domain)
}

func encrypt(op string, signed, aad []byte, recipient *xhpke.PublicKey, domain []byte) ([]byte, error) {
	fp := recipient.Fingerprint()
	protected, err := cbor.Marshal(&encHeader{
		Algorithm: AlgorithmXHPKE,
		KeyID:     fp[:],
	})
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	ad, err := encStructure(protected, aad)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}

	sessionKey, ciphertext, err := recipient.Seal(signed, ad, domain)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}

	out, err := marshalEncrypt0(&encrypt0{
		Protected:   protected,
		Unprotected: encUnprotected{EncapsulatedKey: sessionKey[:]},
		Ciphertext:  ciphertext,
	})
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	return out, nil
}

// Decrypt unwraps a COSE_Encrypt0 envelope and returns the inner COSE_Sign1
// envelope. The signature of the inner envelope is NOT verified: use Signer
// to find the sender and Verify to check it.
func Decrypt(msg, aad []byte, recipient *xhpke.SecretKey, domain []byte) ([]byte, error) {
	return decrypt("cose.Decrypt", msg, aad, recipient, domain)
}

func decrypt(op string, msg, aad []byte, recipient *xhpke.SecretKey, domain []byte) ([]byte, error) {
	env, header, err := parseEncrypt0(op, msg)
	if err != nil {
		return nil, err
	}

	fp := recipient.Fingerprint()
	if !bytes.Equal(header.KeyID, fp[:]) {
		return nil, fault.Usage(op, "envelope encrypted to %x, not to %s", header.KeyID, fp)
	}

	ad, err := encStructure(env.Protected, aad)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	signed, err := recipient.Open(env.Unprotected.EncapsulatedKey, env.Ciphertext, ad, domain)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	return signed, nil
}

// Recipient returns the fingerprint of the key a COSE_Encrypt0 envelope is
// addressed to, without decrypting it.
func Recipient(msg []byte) (xhpke.Fingerprint, error) {
	_, header, err := parseEncrypt0("cose.Recipient", msg)
	if err != nil {
		return xhpke.Fingerprint{}, err
	}
	return xhpke.Fingerprint(header.KeyID), nil
}

// Seal signs payload with signer and encrypts the result to recipient,
// binding aad and domain into both layers.
func Seal(payload, aad []byte, signer *xdsa.SecretKey, recipient *xhpke.PublicKey, domain []byte, opts ...Option) ([]byte, error) {
	const op = "cose.Seal"

	signed, err := sign(op, orEmpty(payload), aad, signer, domain, newConfig(opts))
	if err != nil {
		return nil, err
	}
	return encrypt(op, signed, aad, recipient, domain)
}

// Open decrypts a sealed envelope with recipient and verifies the inner
// signature against sender, returning the payload.
//
// Authentication failures of either layer are reported as one identical
// error so that callers cannot tell which layer rejected the message.
// Malformed input, key mismatches and freshness failures keep their kinds.
func Open(msg, aad []byte, recipient *xhpke.SecretKey, sender *xdsa.PublicKey, domain []byte, opts ...Option) ([]byte, error) {
	const op = "cose.Open"

	signed, err := decrypt(op, msg, aad, recipient, domain)
	if err != nil {
		return nil, openError(op, err)
	}
	env, err := verify(op, signed, false, aad, sender, domain, newConfig(opts))
	if err != nil {
		return nil, openError(op, err)
	}
	return env.Payload, nil
}

func openError(op string, err error) error {
	if fault.KindOf(err) == fault.KindAuthentication {
		return fault.Authentication(op, "message authentication failed")
	}
	return err
}

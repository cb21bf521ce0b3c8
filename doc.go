// Package cryptofl is a secure-envelope toolkit built on quantum-resistant
// composite key algorithms.
//
// The module is split into packages by concern:
//
//   - xdsa: composite ML-DSA-65 + Ed25519 signature keys
//   - xhpke: X-Wing (ML-KEM-768 + X25519) hybrid encryption keys
//   - cose: signed and encrypted message envelopes over both key kinds
//   - x509: certificates binding xDSA and xHPKE keys to names
//   - stream: chunked authenticated encryption for large payloads
//   - rsa, hkdf, argon2, rand: classical helpers for deriving and
//     obtaining key material
//   - cbor: the canonical codec every envelope passes through
//
// Basic usage:
//
//	alice, err := xdsa.GenerateKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bob, err := xhpke.GenerateKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Sign with Alice's key and encrypt to Bob
//	msg, err := cose.Seal([]byte("hello"), nil, alice, bob.PublicKey(), []byte("chat/v1"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decrypt with Bob's key and check Alice's signature
//	payload, err := cose.Open(msg, nil, bob, alice.PublicKey(), []byte("chat/v1"),
//	    cose.WithMaxDrift(time.Minute))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Every operation returns errors of type *Error. Branch on their kind with
// errors.Is and the sentinels in this package.
package cryptofl

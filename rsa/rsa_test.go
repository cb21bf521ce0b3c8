package rsa

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

var (
	sharedKey     *SecretKey
	sharedKeyErr  error
	sharedKeyOnce sync.Once
)

// testKey returns one key for the whole package; RSA generation is slow.
func testKey(t *testing.T) *SecretKey {
	t.Helper()
	sharedKeyOnce.Do(func() {
		sharedKey, sharedKeyErr = GenerateKey()
	})
	if sharedKeyErr != nil {
		t.Fatalf("GenerateKey() error = %v", sharedKeyErr)
	}
	return sharedKey
}

func TestSignVerify(t *testing.T) {
	t.Parallel()
	sk := testKey(t)
	msg := []byte("message to sign")

	sig, err := sk.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := sk.PublicKey().Verify(msg, sig); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if err := sk.PublicKey().Verify([]byte("other"), sig); !errors.Is(err, fault.ErrAuthentication) {
		t.Errorf("Verify() with other message error = %v, want ErrAuthentication", err)
	}

	tampered := *sig
	tampered[0] ^= 0x01
	if err := sk.PublicKey().Verify(msg, &tampered); !errors.Is(err, fault.ErrAuthentication) {
		t.Errorf("Verify() with tampered signature error = %v, want ErrAuthentication", err)
	}
}

func TestSign_Deterministic(t *testing.T) {
	t.Parallel()
	sk := testKey(t)

	a, err := sk.Sign([]byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := sk.Sign([]byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	if *a != *b {
		t.Error("PKCS#1 v1.5 signatures of the same message differ")
	}
}

func TestSecretKey_Encodings(t *testing.T) {
	t.Parallel()
	sk := testKey(t)
	fp := sk.Fingerprint()

	raw := sk.Bytes()
	if len(raw) != SecretKeySize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(raw), SecretKeySize)
	}

	fromBytes, err := ParseSecretKey(raw)
	if err != nil {
		t.Fatalf("ParseSecretKey() error = %v", err)
	}
	fromDER, err := ParseSecretKeyDER(sk.MarshalDER())
	if err != nil {
		t.Fatalf("ParseSecretKeyDER() error = %v", err)
	}
	fromPEM, err := ParseSecretKeyPEM(sk.MarshalPEM())
	if err != nil {
		t.Fatalf("ParseSecretKeyPEM() error = %v", err)
	}

	for name, got := range map[string]*SecretKey{"bytes": fromBytes, "der": fromDER, "pem": fromPEM} {
		if got.Fingerprint() != fp {
			t.Errorf("%s: Fingerprint() differs", name)
		}
		if !bytes.Equal(got.Bytes(), raw) {
			t.Errorf("%s: Bytes() differs", name)
		}
	}
}

func TestPublicKey_Encodings(t *testing.T) {
	t.Parallel()
	pk := testKey(t).PublicKey()

	raw := pk.Bytes()
	if len(raw) != PublicKeySize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(raw), PublicKeySize)
	}

	fromBytes, err := ParsePublicKey(raw)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	fromDER, err := ParsePublicKeyDER(pk.MarshalDER())
	if err != nil {
		t.Fatalf("ParsePublicKeyDER() error = %v", err)
	}
	fromPEM, err := ParsePublicKeyPEM(pk.MarshalPEM())
	if err != nil {
		t.Fatalf("ParsePublicKeyPEM() error = %v", err)
	}

	for name, got := range map[string]*PublicKey{"bytes": fromBytes, "der": fromDER, "pem": fromPEM} {
		if !got.Equal(pk) {
			t.Errorf("%s: parsed key differs from original", name)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	sk := testKey(t)

	inconsistent := sk.Bytes()
	inconsistent[2*primeSize] ^= 0x01 // corrupt d

	evenExponent := sk.PublicKey().Bytes()
	evenExponent[PublicKeySize-1] = 0x04

	tests := []struct {
		name  string
		parse func() error
	}{
		{"secret short", func() error { _, err := ParseSecretKey(make([]byte, SecretKeySize-1)); return err }},
		{"secret inconsistent", func() error { _, err := ParseSecretKey(inconsistent); return err }},
		{"public short", func() error { _, err := ParsePublicKey(make([]byte, PublicKeySize-1)); return err }},
		{"public even exponent", func() error { _, err := ParsePublicKey(evenExponent); return err }},
		{"public zero modulus", func() error {
			b := make([]byte, PublicKeySize)
			b[PublicKeySize-1] = 3
			_, err := ParsePublicKey(b)
			return err
		}},
		{"signature short", func() error { _, err := ParseSignature(make([]byte, SignatureSize-1)); return err }},
		{"der garbage", func() error { _, err := ParsePublicKeyDER([]byte{0x30, 0x00}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.parse(); !errors.Is(err, fault.ErrMalformed) {
				t.Errorf("parse error = %v, want ErrMalformed", err)
			}
		})
	}
}

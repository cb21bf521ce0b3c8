package pkix

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"strings"
	"testing"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

var (
	testOID  = asn1.ObjectIdentifier{1, 2, 3, 4}
	otherOID = asn1.ObjectIdentifier{1, 2, 3, 5}
)

func TestPublicKey_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x5a}, 40)

	got, err := ParsePublicKey("test", MarshalPublicKey(testOID, key), testOID, len(key))
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("ParsePublicKey() returned different key bits")
	}
}

func TestPrivateKey_RoundTrip(t *testing.T) {
	seed := bytes.Repeat([]byte{0x17}, 32)

	got, err := ParsePrivateKey("test", MarshalPrivateKey(testOID, seed), testOID, len(seed))
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Error("ParsePrivateKey() returned different seed")
	}
}

func TestParse_Rejects(t *testing.T) {
	pub := MarshalPublicKey(testOID, make([]byte, 32))
	priv := MarshalPrivateKey(testOID, make([]byte, 32))

	tests := []struct {
		name  string
		parse func() error
	}{
		{"public wrong oid", func() error { _, err := ParsePublicKey("t", pub, otherOID, 32); return err }},
		{"public wrong size", func() error { _, err := ParsePublicKey("t", pub, testOID, 33); return err }},
		{"public trailing", func() error { _, err := ParsePublicKey("t", append(bytes.Clone(pub), 0), testOID, 32); return err }},
		{"public garbage", func() error { _, err := ParsePublicKey("t", []byte{0x30, 0x01}, testOID, 32); return err }},
		{"private wrong oid", func() error { _, err := ParsePrivateKey("t", priv, otherOID, 32); return err }},
		{"private wrong size", func() error { _, err := ParsePrivateKey("t", priv, testOID, 31); return err }},
		{"private trailing", func() error { _, err := ParsePrivateKey("t", append(bytes.Clone(priv), 0), testOID, 32); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.parse(); !errors.Is(err, fault.ErrMalformed) {
				t.Errorf("parse error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestPEM(t *testing.T) {
	der := []byte{0x30, 0x00}
	text := EncodePEM(PublicKeyBlock, der)

	if !IsPEM([]byte(text)) {
		t.Error("IsPEM() = false for PEM text")
	}
	if IsPEM(der) {
		t.Error("IsPEM() = true for DER")
	}

	got, err := DecodePEM("test", "\n"+text+"\n\n", PublicKeyBlock)
	if err != nil {
		t.Fatalf("DecodePEM() error = %v", err)
	}
	if !bytes.Equal(got, der) {
		t.Error("DecodePEM() returned different bytes")
	}

	bad := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"wrong type", EncodePEM(PrivateKeyBlock, der)},
		{"trailing data", text + "junk"},
		{"two blocks", text + text},
		{"headers", strings.Replace(text, "\n", "\nProc-Type: 4,ENCRYPTED\n\n", 1)},
	}
	for _, tt := range bad {
		if _, err := DecodePEM("test", tt.data, PublicKeyBlock); !errors.Is(err, fault.ErrMalformed) {
			t.Errorf("DecodePEM(%s) error = %v, want ErrMalformed", tt.name, err)
		}
	}
}

package x509

import (
	"bytes"
	stdx509 "crypto/x509"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/cryptobyte"

	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

func newSigner(t *testing.T) *xdsa.SecretKey {
	t.Helper()
	sk, err := xdsa.GenerateKey()
	if err != nil {
		t.Fatalf("xdsa.GenerateKey() error = %v", err)
	}
	return sk
}

func leafParams() *Params {
	return &Params{
		SubjectName: "Alice",
		IssuerName:  "Example CA",
		NotBefore:   1_700_000_000,
		NotAfter:    1_700_086_400,
	}
}

func TestIssueVerify_XDSA(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)
	subject := newSigner(t)

	der, err := Issue(subject.PublicKey(), ca, leafParams())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	cert, err := Verify(der, ca.PublicKey())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if cert.SubjectName != "Alice" || cert.IssuerName != "Example CA" {
		t.Errorf("names = %q, %q, want %q, %q", cert.SubjectName, cert.IssuerName, "Alice", "Example CA")
	}
	if cert.NotBefore != 1_700_000_000 || cert.NotAfter != 1_700_086_400 {
		t.Errorf("validity = [%d, %d], want [1700000000, 1700086400]", cert.NotBefore, cert.NotAfter)
	}
	if cert.IsCA || cert.PathLen != nil {
		t.Errorf("IsCA = %v, PathLen = %v, want false, nil", cert.IsCA, cert.PathLen)
	}
	if cert.Serial.Sign() <= 0 {
		t.Errorf("Serial = %v, want positive", cert.Serial)
	}
	subjectFP, issuerFP := subject.Fingerprint(), ca.Fingerprint()
	if !bytes.Equal(cert.SubjectKeyID, subjectFP[:]) {
		t.Error("SubjectKeyID is not the subject fingerprint")
	}
	if !bytes.Equal(cert.AuthorityKeyID, issuerFP[:]) {
		t.Error("AuthorityKeyID is not the issuer fingerprint")
	}

	verified, err := VerifyXDSA(der, ca.PublicKey())
	if err != nil {
		t.Fatalf("VerifyXDSA() error = %v", err)
	}
	if !verified.PublicKey.Equal(subject.PublicKey()) {
		t.Error("VerifyXDSA() returned a different key")
	}
	if verified.NotBefore != cert.NotBefore || verified.NotAfter != cert.NotAfter {
		t.Error("VerifyXDSA() returned a different validity window")
	}
}

func TestIssueVerify_XHPKE(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)
	subject, err := xhpke.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	pem, err := IssuePEM(subject.PublicKey(), ca, leafParams())
	if err != nil {
		t.Fatalf("IssuePEM() error = %v", err)
	}
	if !strings.HasPrefix(pem, "-----BEGIN CERTIFICATE-----") {
		t.Errorf("IssuePEM() = %q..., want a CERTIFICATE block", pem[:20])
	}

	verified, err := VerifyXHPKE([]byte(pem), ca.PublicKey())
	if err != nil {
		t.Fatalf("VerifyXHPKE() error = %v", err)
	}
	if !verified.PublicKey.Equal(subject.PublicKey()) {
		t.Error("VerifyXHPKE() returned a different key")
	}

	if _, err := VerifyXDSA([]byte(pem), ca.PublicKey()); !errors.Is(err, fault.ErrUsage) {
		t.Errorf("VerifyXDSA(xHPKE certificate) error = %v, want ErrUsage", err)
	}
}

func TestIssue_CA(t *testing.T) {
	t.Parallel()
	root := newSigner(t)
	intermediate := newSigner(t)
	pathLen := uint8(0)

	der, err := Issue(intermediate.PublicKey(), root, &Params{
		SubjectName: "Intermediate",
		IssuerName:  "Root",
		NotBefore:   0,
		NotAfter:    4_102_444_800, // 2100, encoded as GeneralizedTime
		IsCA:        true,
		PathLen:     &pathLen,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	cert, err := Verify(der, root.PublicKey())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !cert.IsCA {
		t.Error("IsCA = false, want true")
	}
	if cert.PathLen == nil || *cert.PathLen != 0 {
		t.Errorf("PathLen = %v, want 0", cert.PathLen)
	}
	if cert.NotBefore != 0 || cert.NotAfter != 4_102_444_800 {
		t.Errorf("validity = [%d, %d], want [0, 4102444800]", cert.NotBefore, cert.NotAfter)
	}

	// The intermediate can now certify leaves.
	leaf := newSigner(t)
	leafDER, err := Issue(leaf.PublicKey(), intermediate, leafParams())
	if err != nil {
		t.Fatal(err)
	}
	ca, err := VerifyXDSA(der, root.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyXDSA(leafDER, ca.PublicKey); err != nil {
		t.Errorf("VerifyXDSA(leaf) error = %v", err)
	}
}

func TestIssue_InvalidParams(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)
	encKey, err := xhpke.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pathLen := uint8(1)

	tests := []struct {
		name    string
		subject Subject
		params  *Params
		wantErr error
	}{
		{"not before after not after", ca.PublicKey(), &Params{NotBefore: 1000, NotAfter: 500}, fault.ErrValidity},
		{"path length without CA", ca.PublicKey(), &Params{NotAfter: 1, PathLen: &pathLen}, fault.ErrUsage},
		{"encryption key as CA", encKey.PublicKey(), &Params{NotAfter: 1, IsCA: true}, fault.ErrUsage},
		{"past year 9999", ca.PublicKey(), &Params{NotAfter: maxTime + 1}, fault.ErrUsage},
		{"nil params", ca.PublicKey(), nil, fault.ErrUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			der, err := Issue(tt.subject, ca, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Issue() error = %v, want %v", err, tt.wantErr)
			}
			if der != nil {
				t.Error("Issue() returned a certificate on failure")
			}
		})
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()
	x := newSigner(t)
	y := newSigner(t)

	der, err := Issue(newSigner(t).PublicKey(), x, leafParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(der, y.PublicKey()); !errors.Is(err, fault.ErrAuthentication) {
		t.Errorf("Verify() with other issuer error = %v, want ErrAuthentication", err)
	}
}

func TestVerify_Tampered(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)

	der, err := Issue(newSigner(t).PublicKey(), ca, leafParams())
	if err != nil {
		t.Fatal(err)
	}

	for pos := 0; pos < len(der); pos += 11 {
		tampered := bytes.Clone(der)
		tampered[pos] ^= 0x01
		if _, err := Verify(tampered, ca.PublicKey()); err == nil {
			t.Fatalf("Verify() with byte %d flipped succeeded", pos)
		}
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)

	der, err := Issue(ca.PublicKey(), ca, leafParams())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a certificate")},
		{"truncated", der[:len(der)-1]},
		{"trailing", append(bytes.Clone(der), 0x00)},
		{"public key pem", []byte(ca.PublicKey().MarshalPEM())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify(tt.data, ca.PublicKey()); !errors.Is(err, fault.ErrMalformed) {
				t.Errorf("Verify() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestIssue_StandardParser(t *testing.T) {
	t.Parallel()
	ca := newSigner(t)
	subject, err := xhpke.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	der, err := Issue(subject.PublicKey(), ca, leafParams())
	if err != nil {
		t.Fatal(err)
	}

	// The composite algorithms are unknown to crypto/x509, but the rest of
	// the structure must parse.
	cert, err := stdx509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	if cert.Subject.CommonName != "Alice" || cert.Issuer.CommonName != "Example CA" {
		t.Errorf("names = %q, %q", cert.Subject.CommonName, cert.Issuer.CommonName)
	}
	if cert.NotBefore.Unix() != 1_700_000_000 || cert.NotAfter.Unix() != 1_700_086_400 {
		t.Errorf("validity = [%v, %v]", cert.NotBefore, cert.NotAfter)
	}
	if cert.KeyUsage != stdx509.KeyUsageKeyEncipherment {
		t.Errorf("KeyUsage = %v, want %v", cert.KeyUsage, stdx509.KeyUsageKeyEncipherment)
	}
	if cert.IsCA {
		t.Error("IsCA = true, want false")
	}
}

func TestAddNamedBits(t *testing.T) {
	tests := []struct {
		bits       byte
		wantUnused byte
	}{
		{usageDigitalSignature, 7},
		{usageKeyEncipherment, 5},
		{usageKeyCertSign | usageCRLSign, 1},
	}
	for _, tt := range tests {
		var b cryptobyte.Builder
		addNamedBits(&b, tt.bits)
		got := b.BytesOrPanic()
		want := []byte{0x03, 0x02, tt.wantUnused, tt.bits}
		if !bytes.Equal(got, want) {
			t.Errorf("addNamedBits(%#x) = %x, want %x", tt.bits, got, want)
		}
	}
}

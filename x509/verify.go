package x509

import (
	"bytes"
	"encoding/asn1"
	"math/big"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/pkix"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

// Verify parses a DER or PEM encoded certificate and checks that issuer
// signed it. The validity window is returned, not compared with any clock.
func Verify(cert []byte, issuer *xdsa.PublicKey) (*Certificate, error) {
	return verify("x509.Verify", cert, issuer)
}

// VerifyXDSA verifies a certificate for an xDSA subject key.
func VerifyXDSA(cert []byte, issuer *xdsa.PublicKey) (*Verified[*xdsa.PublicKey], error) {
	const op = "x509.VerifyXDSA"

	c, err := verify(op, cert, issuer)
	if err != nil {
		return nil, err
	}
	if !c.KeyAlgorithm.Equal(xdsa.OID()) {
		return nil, fault.Usage(op, "certificate holds a %v key, want xDSA", c.KeyAlgorithm)
	}
	key, err := xdsa.ParsePublicKey(c.PublicKey)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	return &Verified[*xdsa.PublicKey]{PublicKey: key, NotBefore: c.NotBefore, NotAfter: c.NotAfter}, nil
}

// VerifyXHPKE verifies a certificate for an xHPKE subject key.
func VerifyXHPKE(cert []byte, issuer *xdsa.PublicKey) (*Verified[*xhpke.PublicKey], error) {
	const op = "x509.VerifyXHPKE"

	c, err := verify(op, cert, issuer)
	if err != nil {
		return nil, err
	}
	if !c.KeyAlgorithm.Equal(xhpke.OID()) {
		return nil, fault.Usage(op, "certificate holds a %v key, want xHPKE", c.KeyAlgorithm)
	}
	key, err := xhpke.ParsePublicKey(c.PublicKey)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	return &Verified[*xhpke.PublicKey]{PublicKey: key, NotBefore: c.NotBefore, NotAfter: c.NotAfter}, nil
}

func verify(op string, data []byte, issuer *xdsa.PublicKey) (*Certificate, error) {
	der := data
	if pkix.IsPEM(data) {
		var err error
		if der, err = pkix.DecodePEM(op, string(data), pkix.CertificateBlock); err != nil {
			return nil, err
		}
	}

	input := cryptobyte.String(der)
	var (
		cert   cryptobyte.String
		tbsDER cryptobyte.String
		sig    asn1.BitString
	)
	if !input.ReadASN1(&cert, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fault.Malformed(op, "invalid certificate structure")
	}
	if !cert.ReadASN1Element(&tbsDER, cbasn1.SEQUENCE) {
		return nil, fault.Malformed(op, "invalid certificate body")
	}
	if !pkix.ReadAlgorithmIdentifier(&cert, xdsa.OID()) {
		return nil, fault.Malformed(op, "unsupported signature algorithm")
	}
	if !cert.ReadASN1BitString(&sig) || sig.BitLength != 8*xdsa.SignatureSize || !cert.Empty() {
		return nil, fault.Malformed(op, "invalid certificate signature")
	}

	c, err := parseTBS(op, tbsDER)
	if err != nil {
		return nil, err
	}

	signature, err := xdsa.ParseSignature(sig.Bytes)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}
	if err := issuer.Verify(tbsDER, signature); err != nil {
		return nil, fault.Authentication(op, "issuer signature mismatch")
	}

	if fp := issuer.Fingerprint(); c.AuthorityKeyID != nil && !bytes.Equal(c.AuthorityKeyID, fp[:]) {
		return nil, fault.Malformed(op, "authority key id does not match issuer")
	}
	if c.NotBefore > c.NotAfter {
		return nil, fault.New(op, fault.KindValidity, "not before %d is after not after %d", c.NotBefore, c.NotAfter)
	}
	return c, nil
}

func parseTBS(op string, der cryptobyte.String) (*Certificate, error) {
	var (
		tbs      cryptobyte.String
		version  cryptobyte.String
		validity cryptobyte.String
		spki     cryptobyte.String
		ver      int64
		err      error
	)
	c := &Certificate{Serial: new(big.Int)}

	if !der.ReadASN1(&tbs, cbasn1.SEQUENCE) {
		return nil, fault.Malformed(op, "invalid certificate body")
	}
	if !tbs.ReadASN1(&version, tagVersion) || !version.ReadASN1Integer(&ver) || ver != 2 || !version.Empty() {
		return nil, fault.Malformed(op, "unsupported certificate version")
	}
	if !tbs.ReadASN1Integer(c.Serial) || c.Serial.Sign() <= 0 {
		return nil, fault.Malformed(op, "invalid serial number")
	}
	if !pkix.ReadAlgorithmIdentifier(&tbs, xdsa.OID()) {
		return nil, fault.Malformed(op, "unsupported signature algorithm")
	}
	if c.IssuerName, err = readName(op, &tbs); err != nil {
		return nil, err
	}
	if !tbs.ReadASN1(&validity, cbasn1.SEQUENCE) {
		return nil, fault.Malformed(op, "invalid validity")
	}
	if c.NotBefore, err = readTime(op, &validity); err != nil {
		return nil, err
	}
	if c.NotAfter, err = readTime(op, &validity); err != nil {
		return nil, err
	}
	if !validity.Empty() {
		return nil, fault.Malformed(op, "trailing data in validity")
	}
	if c.SubjectName, err = readName(op, &tbs); err != nil {
		return nil, err
	}

	if !tbs.ReadASN1(&spki, cbasn1.SEQUENCE) {
		return nil, fault.Malformed(op, "invalid subject public key info")
	}
	switch {
	case peekAlgorithm(spki, xdsa.OID()):
		c.KeyAlgorithm = xdsa.OID()
		c.PublicKey, err = pkix.ReadSubjectPublicKey(op, &spki, xdsa.OID(), xdsa.PublicKeySize)
	case peekAlgorithm(spki, xhpke.OID()):
		c.KeyAlgorithm = xhpke.OID()
		c.PublicKey, err = pkix.ReadSubjectPublicKey(op, &spki, xhpke.OID(), xhpke.PublicKeySize)
	default:
		err = fault.Malformed(op, "unsupported subject key algorithm")
	}
	if err != nil {
		return nil, err
	}
	if !spki.Empty() {
		return nil, fault.Malformed(op, "trailing data in subject public key info")
	}

	if tbs.PeekASN1Tag(tagExtensions) {
		if err := readExtensions(op, &tbs, c); err != nil {
			return nil, err
		}
	}
	if !tbs.Empty() {
		return nil, fault.Malformed(op, "unexpected fields in certificate body")
	}
	if !der.Empty() {
		return nil, fault.Malformed(op, "trailing data after certificate body")
	}
	return c, nil
}

// peekAlgorithm reports whether s starts with an AlgorithmIdentifier for oid.
func peekAlgorithm(s cryptobyte.String, oid asn1.ObjectIdentifier) bool {
	return pkix.ReadAlgorithmIdentifier(&s, oid)
}

func readName(op string, s *cryptobyte.String) (string, error) {
	var rdns cryptobyte.String
	if !s.ReadASN1(&rdns, cbasn1.SEQUENCE) {
		return "", fault.Malformed(op, "invalid name")
	}
	var cn string
	for !rdns.Empty() {
		var set cryptobyte.String
		if !rdns.ReadASN1(&set, cbasn1.SET) {
			return "", fault.Malformed(op, "invalid relative distinguished name")
		}
		for !set.Empty() {
			var (
				atv   cryptobyte.String
				oid   asn1.ObjectIdentifier
				value cryptobyte.String
				tag   cbasn1.Tag
			)
			if !set.ReadASN1(&atv, cbasn1.SEQUENCE) || !atv.ReadASN1ObjectIdentifier(&oid) ||
				!atv.ReadAnyASN1(&value, &tag) || !atv.Empty() {
				return "", fault.Malformed(op, "invalid name attribute")
			}
			if !oid.Equal(oidCommonName) {
				continue
			}
			if tag != cbasn1.UTF8String && tag != cbasn1.PrintableString {
				return "", fault.Malformed(op, "unsupported common name encoding")
			}
			if !utf8.Valid(value) {
				return "", fault.Malformed(op, "invalid UTF-8 in common name")
			}
			cn = string(value)
		}
	}
	return cn, nil
}

func readTime(op string, s *cryptobyte.String) (uint64, error) {
	var t time.Time
	switch {
	case s.PeekASN1Tag(cbasn1.UTCTime):
		if !s.ReadASN1UTCTime(&t) {
			return 0, fault.Malformed(op, "invalid UTCTime")
		}
	case s.PeekASN1Tag(cbasn1.GeneralizedTime):
		if !s.ReadASN1GeneralizedTime(&t) {
			return 0, fault.Malformed(op, "invalid GeneralizedTime")
		}
	default:
		return 0, fault.Malformed(op, "invalid time")
	}
	if t.Unix() < 0 {
		return 0, fault.Malformed(op, "time %v before the Unix epoch", t)
	}
	return uint64(t.Unix()), nil
}

func readExtensions(op string, s *cryptobyte.String, c *Certificate) error {
	var wrapper, exts cryptobyte.String
	if !s.ReadASN1(&wrapper, tagExtensions) || !wrapper.ReadASN1(&exts, cbasn1.SEQUENCE) || !wrapper.Empty() {
		return fault.Malformed(op, "invalid extensions")
	}

	seen := make(map[string]bool)
	for !exts.Empty() {
		var (
			ext      cryptobyte.String
			oid      asn1.ObjectIdentifier
			critical bool
			value    cryptobyte.String
		)
		if !exts.ReadASN1(&ext, cbasn1.SEQUENCE) || !ext.ReadASN1ObjectIdentifier(&oid) {
			return fault.Malformed(op, "invalid extension")
		}
		if ext.PeekASN1Tag(cbasn1.BOOLEAN) {
			if !ext.ReadASN1Boolean(&critical) || !critical {
				return fault.Malformed(op, "invalid critical flag in extension %v", oid)
			}
		}
		if !ext.ReadASN1(&value, cbasn1.OCTET_STRING) || !ext.Empty() {
			return fault.Malformed(op, "invalid value of extension %v", oid)
		}
		if seen[oid.String()] {
			return fault.Malformed(op, "duplicate extension %v", oid)
		}
		seen[oid.String()] = true

		var ok bool
		switch {
		case oid.Equal(oidBasicConstraints):
			ok = readBasicConstraints(value, c)
		case oid.Equal(oidKeyUsage):
			var bits asn1.BitString
			ok = value.ReadASN1BitString(&bits) && value.Empty()
		case oid.Equal(oidSubjectKeyID):
			ok = value.ReadASN1Bytes(&c.SubjectKeyID, cbasn1.OCTET_STRING) && value.Empty()
		case oid.Equal(oidAuthorityKeyID):
			ok = readAuthorityKeyID(value, c)
		default:
			if critical {
				return fault.Malformed(op, "unsupported critical extension %v", oid)
			}
			ok = true
		}
		if !ok {
			return fault.Malformed(op, "invalid extension %v", oid)
		}
	}
	return nil
}

func readBasicConstraints(value cryptobyte.String, c *Certificate) bool {
	var seq cryptobyte.String
	if !value.ReadASN1(&seq, cbasn1.SEQUENCE) || !value.Empty() {
		return false
	}
	if seq.PeekASN1Tag(cbasn1.BOOLEAN) {
		if !seq.ReadASN1Boolean(&c.IsCA) || !c.IsCA {
			return false
		}
	}
	if seq.PeekASN1Tag(cbasn1.INTEGER) {
		var n int64
		if !seq.ReadASN1Integer(&n) || n < 0 || n > 255 {
			return false
		}
		pathLen := uint8(n)
		c.PathLen = &pathLen
	}
	return seq.Empty() && (c.PathLen == nil || c.IsCA)
}

func readAuthorityKeyID(value cryptobyte.String, c *Certificate) bool {
	var seq cryptobyte.String
	if !value.ReadASN1(&seq, cbasn1.SEQUENCE) || !value.Empty() {
		return false
	}
	var id cryptobyte.String
	if !seq.ReadASN1(&id, tagAuthorityKeyIDKey) {
		return false
	}
	c.AuthorityKeyID = bytes.Clone(id)
	return true
}

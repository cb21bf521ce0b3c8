// Package x509 issues and verifies X.509 v3 certificates signed with
// composite xDSA keys.
//
// A certificate binds a subject public key (xDSA or xHPKE) to a subject
// name and a validity window. Verification checks a certificate against a
// single issuer key; walking chains is left to the caller, as is comparing
// the validity window against a clock.
package x509

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/pkix"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

// serialSize is the size of certificate serial numbers in bytes.
const serialSize = 16

// maxTime is the last second GeneralizedTime can represent, 9999-12-31T23:59:59Z.
const maxTime = 253402300799

// randReader is the random source for serial numbers.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

// Subject is a public key that can be certified.
type Subject interface {
	Bytes() []byte
	OID() asn1.ObjectIdentifier
}

// Params are the issuer-chosen contents of a certificate.
type Params struct {
	SubjectName string
	IssuerName  string

	// NotBefore and NotAfter bound the validity window in Unix seconds,
	// both inclusive.
	NotBefore uint64
	NotAfter  uint64

	// IsCA marks the subject as a certificate authority. Only xDSA keys
	// can be authorities.
	IsCA bool

	// PathLen limits the number of intermediate authorities below this
	// one. It may only be set together with IsCA.
	PathLen *uint8
}

// Certificate is the content of a verified certificate.
type Certificate struct {
	Serial      *big.Int
	SubjectName string
	IssuerName  string
	NotBefore   uint64
	NotAfter    uint64
	IsCA        bool
	PathLen     *uint8

	// KeyAlgorithm and PublicKey hold the subject key as encoded in the
	// certificate.
	KeyAlgorithm asn1.ObjectIdentifier
	PublicKey    []byte

	SubjectKeyID   []byte
	AuthorityKeyID []byte
}

// Verified is a verified certificate with a typed subject key.
type Verified[K any] struct {
	PublicKey K
	NotBefore uint64
	NotAfter  uint64
}

var (
	oidCommonName        = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidSubjectKeyID      = asn1.ObjectIdentifier{2, 5, 29, 14}
	oidKeyUsage          = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidBasicConstraints  = asn1.ObjectIdentifier{2, 5, 29, 19}
	oidAuthorityKeyID    = asn1.ObjectIdentifier{2, 5, 29, 35}
	tagVersion           = cbasn1.Tag(0).Constructed().ContextSpecific()
	tagExtensions        = cbasn1.Tag(3).Constructed().ContextSpecific()
	tagAuthorityKeyIDKey = cbasn1.Tag(0).ContextSpecific()
)

// Key usage bits, numbered from the most significant bit of the first byte.
const (
	usageDigitalSignature = 0x80
	usageKeyEncipherment  = 0x20
	usageKeyCertSign      = 0x04
	usageCRLSign          = 0x02
)

// Issue creates a DER encoded certificate for subject, signed by issuer.
func Issue(subject Subject, issuer *xdsa.SecretKey, p *Params) ([]byte, error) {
	const op = "x509.Issue"

	if p == nil {
		return nil, fault.Usage(op, "missing parameters")
	}
	if p.NotBefore > p.NotAfter {
		return nil, fault.New(op, fault.KindValidity, "not before %d is after not after %d", p.NotBefore, p.NotAfter)
	}
	if p.NotAfter > maxTime {
		return nil, fault.Usage(op, "not after %d is past the year 9999", p.NotAfter)
	}
	if p.PathLen != nil && !p.IsCA {
		return nil, fault.Usage(op, "path length set on a non-CA certificate")
	}

	keyOID := subject.OID()
	var usage byte
	switch {
	case keyOID.Equal(xdsa.OID()) && p.IsCA:
		usage = usageKeyCertSign | usageCRLSign
	case keyOID.Equal(xdsa.OID()):
		usage = usageDigitalSignature
	case keyOID.Equal(xhpke.OID()) && p.IsCA:
		return nil, fault.Usage(op, "encryption keys cannot be certificate authorities")
	case keyOID.Equal(xhpke.OID()):
		usage = usageKeyEncipherment
	default:
		return nil, fault.Usage(op, "unsupported subject key algorithm %v", keyOID)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, fault.Wrap(op, fault.KindUsage, err, "generate serial")
	}
	keyBytes := subject.Bytes()
	issuerFP := issuer.Fingerprint()

	var tbs cryptobyte.Builder
	tbs.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(tagVersion, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(2)
		})
		b.AddASN1BigInt(serial)
		pkix.AddAlgorithmIdentifier(b, xdsa.OID())
		addName(b, p.IssuerName)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			addTime(b, p.NotBefore)
			addTime(b, p.NotAfter)
		})
		addName(b, p.SubjectName)
		pkix.AddSubjectPublicKeyInfo(b, keyOID, keyBytes)
		b.AddASN1(tagExtensions, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				addExtension(b, oidBasicConstraints, true, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						if p.IsCA {
							b.AddASN1Boolean(true)
						}
						if p.PathLen != nil {
							b.AddASN1Int64(int64(*p.PathLen))
						}
					})
				})
				addExtension(b, oidKeyUsage, true, func(b *cryptobyte.Builder) {
					addNamedBits(b, usage)
				})
				addExtension(b, oidSubjectKeyID, false, func(b *cryptobyte.Builder) {
					fp := sha256.Sum256(keyBytes)
					b.AddASN1OctetString(fp[:])
				})
				addExtension(b, oidAuthorityKeyID, false, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1(tagAuthorityKeyIDKey, func(b *cryptobyte.Builder) {
							b.AddBytes(issuerFP[:])
						})
					})
				})
			})
		})
	})
	tbsDER, err := tbs.Bytes()
	if err != nil {
		return nil, fault.Wrap(op, fault.KindUsage, err, "encode certificate body")
	}

	sig, err := issuer.Sign(tbsDER)
	if err != nil {
		return nil, fault.WithOp(err, op)
	}

	var cert cryptobyte.Builder
	cert.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbsDER)
		pkix.AddAlgorithmIdentifier(b, xdsa.OID())
		b.AddASN1BitString(sig[:])
	})
	der, err := cert.Bytes()
	if err != nil {
		return nil, fault.Wrap(op, fault.KindUsage, err, "encode certificate")
	}
	return der, nil
}

// IssuePEM creates a PEM encoded certificate for subject, signed by issuer.
func IssuePEM(subject Subject, issuer *xdsa.SecretKey, p *Params) (string, error) {
	der, err := Issue(subject, issuer, p)
	if err != nil {
		return "", fault.WithOp(err, "x509.IssuePEM")
	}
	return pkix.EncodePEM(pkix.CertificateBlock, der), nil
}

func newSerial() (*big.Int, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, serialSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	// Positive, and never shorter than 15 bytes.
	buf[0] = buf[0]&0x7f | 0x40
	return new(big.Int).SetBytes(buf), nil
}

func addName(b *cryptobyte.Builder, commonName string) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if commonName == "" {
			return
		}
		b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidCommonName)
				b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
					b.AddBytes([]byte(commonName))
				})
			})
		})
	})
}

// addTime encodes t as UTCTime before 2050 and GeneralizedTime from then on.
func addTime(b *cryptobyte.Builder, secs uint64) {
	t := time.Unix(int64(secs), 0).UTC()
	if t.Year() < 2050 {
		b.AddASN1UTCTime(t)
	} else {
		b.AddASN1GeneralizedTime(t)
	}
}

func addExtension(b *cryptobyte.Builder, oid asn1.ObjectIdentifier, critical bool, value cryptobyte.BuilderContinuation) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oid)
		if critical {
			b.AddASN1Boolean(true)
		}
		b.AddASN1(cbasn1.OCTET_STRING, value)
	})
}

// addNamedBits encodes a single-byte named bit list with trailing zero bits
// removed, as DER requires.
func addNamedBits(b *cryptobyte.Builder, bits byte) {
	unused := byte(0)
	for v := bits; v != 0 && v&1 == 0; v >>= 1 {
		unused++
	}
	b.AddASN1(cbasn1.BIT_STRING, func(b *cryptobyte.Builder) {
		b.AddUint8(unused)
		b.AddUint8(bits)
	})
}

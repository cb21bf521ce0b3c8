// Package hkdf derives key material with HKDF-SHA-512 (RFC 5869).
package hkdf

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

// MaxLength is the largest output HKDF-SHA-512 can produce.
const MaxLength = 255 * sha512.Size

// Key derives length bytes from secret.
//
// Parameters:
//   - secret: the input key material (e.g., shared secret from KEM)
//   - salt: optional salt value; if empty, a zero-filled salt is used
//   - info: context/application-specific info for domain separation
//   - length: desired output key length in bytes
func Key(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > MaxLength {
		return nil, fault.Usage("hkdf.Key", "invalid output length %d", length)
	}
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fault.Wrap("hkdf.Key", fault.KindUsage, err, "failed to derive key")
	}

	return key, nil
}

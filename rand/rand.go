// Package rand generates cryptographically secure random bytes.
package rand

import (
	"crypto/rand"
	"io"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

// Reader is the random source. It may be replaced in tests.
var Reader io.Reader = rand.Reader

// Bytes returns n random bytes.
func Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fault.Usage("rand.Bytes", "negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(Reader, buf); err != nil {
		return nil, fault.Wrap("rand.Bytes", fault.KindUsage, err, "read random bytes")
	}
	return buf, nil
}

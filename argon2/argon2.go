// Package argon2 derives keys from passwords with Argon2id (RFC 9106).
package argon2

import (
	"math"

	"golang.org/x/crypto/argon2"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

// Recommended parameters for interactive use. RFC 9106 recommends a single
// pass over 2 GiB of memory where it can be afforded; these fit a phone.
const (
	DefaultTime    = 2
	DefaultMemory  = 64 * 1024
	DefaultThreads = 1
	DefaultKeySize = 32
)

// Key derives a keyLen byte key from password and salt.
//
// Parameters:
//   - time: number of passes over memory
//   - memory: memory size in KiB
//   - threads: degree of parallelism, at most 255
//   - keyLen: desired output key length in bytes
func Key(password, salt []byte, time, memory, threads uint32, keyLen int) ([]byte, error) {
	const op = "argon2.Key"

	switch {
	case time == 0:
		return nil, fault.Usage(op, "time must be at least 1")
	case threads == 0 || threads > math.MaxUint8:
		return nil, fault.Usage(op, "threads must be between 1 and %d, got %d", math.MaxUint8, threads)
	case memory < 8*threads:
		return nil, fault.Usage(op, "memory must be at least %d KiB for %d threads", 8*threads, threads)
	case keyLen <= 0 || uint64(keyLen) > math.MaxUint32:
		return nil, fault.Usage(op, "invalid key length %d", keyLen)
	}
	return argon2.IDKey(password, salt, time, memory, uint8(threads), uint32(keyLen)), nil
}

package argon2

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

func TestKey(t *testing.T) {
	t.Parallel()
	password := []byte("correct horse battery staple")
	salt := []byte("0123456789abcdef")

	key1, err := Key(password, salt, 1, 64, 1, DefaultKeySize)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if len(key1) != DefaultKeySize {
		t.Errorf("key length = %d, want %d", len(key1), DefaultKeySize)
	}

	key2, err := Key(password, salt, 1, 64, 1, DefaultKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("Key not deterministic")
	}

	key3, err := Key(password, []byte("fedcba9876543210"), 1, 64, 1, DefaultKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key1, key3) {
		t.Error("different salts produced the same key")
	}
}

func TestKey_InvalidParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		time    uint32
		memory  uint32
		threads uint32
		keyLen  int
	}{
		{"zero time", 0, 64, 1, 32},
		{"zero threads", 1, 64, 0, 32},
		{"threads overflow", 1, 64 * 1024, 256, 32},
		{"memory too small", 1, 8, 2, 32},
		{"zero key length", 1, 64, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Key([]byte("pw"), []byte("salt"), tt.time, tt.memory, tt.threads, tt.keyLen)
			if !errors.Is(err, fault.ErrUsage) {
				t.Errorf("Key() error = %v, want ErrUsage", err)
			}
		})
	}
}

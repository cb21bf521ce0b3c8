package hkdf

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

func TestKey(t *testing.T) {
	t.Parallel()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		salt   []byte
		info   []byte
		length int
	}{
		{"basic 32 bytes", make([]byte, 32), []byte("info"), 32},
		{"empty salt", nil, []byte("info"), 32},
		{"empty info", make([]byte, 32), nil, 32},
		{"16 byte key", make([]byte, 32), []byte("info"), 16},
		{"max length", make([]byte, 32), []byte("info"), MaxLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Key(secret, tt.salt, tt.info, tt.length)
			if err != nil {
				t.Fatalf("Key() error = %v", err)
			}
			if len(key) != tt.length {
				t.Errorf("key length = %d, want %d", len(key), tt.length)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	t.Parallel()
	secret := []byte("test secret key for derivation")
	salt := []byte("test salt value")
	info := []byte("test info value")

	key1, err := Key(secret, salt, info, 32)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := Key(secret, salt, info, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("Key not deterministic: same inputs produced different outputs")
	}
}

func TestKey_EmptySaltIsZeroSalt(t *testing.T) {
	t.Parallel()
	secret := []byte("secret")

	key1, err := Key(secret, nil, nil, 32)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := Key(secret, make([]byte, 64), nil, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("empty salt and 64 zero bytes derived different keys")
	}
}

func TestKey_DifferentInfo(t *testing.T) {
	t.Parallel()
	secret := []byte("secret")

	key1, _ := Key(secret, nil, []byte("a"), 32)
	key2, _ := Key(secret, nil, []byte("b"), 32)
	if bytes.Equal(key1, key2) {
		t.Error("different info produced the same key")
	}
}

func TestKey_InvalidLength(t *testing.T) {
	t.Parallel()

	for _, length := range []int{0, -1, MaxLength + 1} {
		_, err := Key([]byte("secret"), nil, nil, length)
		if !errors.Is(err, fault.ErrUsage) {
			t.Errorf("Key(length=%d) error = %v, want ErrUsage", length, err)
		}
	}
}

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactAttr(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"secret key", slog.String("secret_key", "abcdef"), redactedValue},
		{"seed", slog.String("Seed", "0011"), redactedValue},
		{"password", slog.String("password", "hunter2"), redactedValue},
		{"fingerprint", slog.String("fingerprint", "0123456789abcdef0123456789abcdef"), "0123456789abcdef..."},
		{"short fingerprint", slog.String("signer_fingerprint", "0123"), "0123"},
		{"plain", slog.String("domain", "chat/v1"), "chat/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactAttr(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("RedactAttr(%v) = %q, want %q", tt.attr, got.Value.String(), tt.want)
			}
			if got.Key != tt.attr.Key {
				t.Errorf("RedactAttr() key = %q, want %q", got.Key, tt.attr.Key)
			}
		})
	}
}

func TestNew_RedactsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Info("signed", "secret_key", "deadbeef", slog.Group("req", slog.String("passphrase", "pw"), slog.Int("size", 3)))
	logger.With("seed", "cafe").Info("derived")
	logger.Debug("hidden")

	out := buf.String()
	for _, leaked := range []string{"deadbeef", "pw", "cafe"} {
		if strings.Contains(out, "="+leaked) {
			t.Errorf("log output leaks %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "req.size=3") {
		t.Errorf("log output lost plain group attribute: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record emitted without verbose")
	}
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug record missing with verbose")
	}
}

func TestWrapHandler_Nil(t *testing.T) {
	if WrapHandler(nil) != nil {
		t.Error("WrapHandler(nil) != nil")
	}
}

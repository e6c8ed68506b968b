package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	plain := []byte("\x89PNG signature bytes")

	sealed, err := sealer.Seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(sealed, plain) {
		t.Fatal("expected sealed bytes to differ from plain text")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("expected %q, got %q", plain, opened)
	}
}

func TestSealerPassesThroughUnsealedData(t *testing.T) {
	sealer, err := NewSealer(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	legacy := []byte("legacy file written before encryption")
	opened, err := sealer.Open(legacy)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, legacy) {
		t.Fatal("expected legacy data unchanged")
	}
}

func TestSealerWithoutKey(t *testing.T) {
	sealer, err := NewSealer("")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	if sealer.Configured() {
		t.Fatal("expected unconfigured sealer")
	}
	out, err := sealer.Seal([]byte("x"))
	if err != nil || string(out) != "x" {
		t.Fatalf("expected passthrough, got %q, %v", out, err)
	}
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	if _, err := NewSealer("too-short"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNewSealerKeyEncodings(t *testing.T) {
	raw := strings.Repeat("k", 32)
	for name, key := range map[string]string{
		"raw":    raw,
		"base64": base64.StdEncoding.EncodeToString([]byte(raw)),
		"hex":    hex.EncodeToString([]byte(raw)),
	} {
		sealer, err := NewSealer(key)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !sealer.Configured() {
			t.Fatalf("%s: expected configured sealer", name)
		}
	}
}

package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func newTestEncryptor(t *testing.T) *AESEncryptor {
	t.Helper()
	enc, err := NewAESEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	return enc
}

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid 32-byte key", testKey(), false},
		{"empty key", "", true},
		{"not base64", "not-valid-base64!!!", true},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short")), true},
		{"too long", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 48)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESEncryptor(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAESEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)
	plaintexts := [][]byte{
		[]byte("a"),
		[]byte("ya29.a0AfH6SMBx-typical-oauth-access-token"),
		[]byte(strings.Repeat("long refresh token material ", 100)),
		[]byte("emoji and unicode: 你好 🎮"),
		{0x00, 0x01, 0xff, 0xfe},
	}
	for _, pt := range plaintexts {
		ct, err := enc.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", pt, err)
		}
		if len(pt) > 4 && bytes.Contains(ct, pt) {
			t.Fatalf("ciphertext contains plaintext %q", pt)
		}
		got, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip = %q, want %q", got, pt)
		}
	}
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	enc := newTestEncryptor(t)
	if _, err := enc.Encrypt(nil); err == nil {
		t.Fatal("Encrypt(nil) succeeded, want error")
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	enc := newTestEncryptor(t)
	a, err := enc.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := enc.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, err := enc.Encrypt([]byte("integrity matters"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	ct[len(ct)-1] ^= 0x01
	if _, err := enc.Decrypt(ct); err == nil {
		t.Fatal("Decrypt() accepted tampered ciphertext")
	}
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	enc := newTestEncryptor(t)
	for _, ct := range [][]byte{nil, {0x01}, bytes.Repeat([]byte{0x02}, 8)} {
		if _, err := enc.Decrypt(ct); err == nil {
			t.Fatalf("Decrypt(%d bytes) succeeded, want error", len(ct))
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc := newTestEncryptor(t)
	other, err := NewAESEncryptor(base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	ct, err := enc.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := other.Decrypt(ct); err == nil {
		t.Fatal("Decrypt() with wrong key succeeded")
	}
}

func TestStringHelpers(t *testing.T) {
	enc := newTestEncryptor(t)

	// Empty strings pass through both directions; token columns are
	// nullable and often blank.
	if got, err := EncryptString(enc, ""); err != nil || got != "" {
		t.Fatalf("EncryptString(empty) = %q, %v", got, err)
	}
	if got, err := DecryptString(enc, ""); err != nil || got != "" {
		t.Fatalf("DecryptString(empty) = %q, %v", got, err)
	}

	ct, err := EncryptString(enc, "refresh-token-value")
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(ct); err != nil {
		t.Fatalf("EncryptString() output is not base64: %v", err)
	}
	pt, err := DecryptString(enc, ct)
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}
	if pt != "refresh-token-value" {
		t.Fatalf("round trip = %q", pt)
	}

	if _, err := DecryptString(enc, "%%% not base64 %%%"); err == nil {
		t.Fatal("DecryptString() accepted invalid base64")
	}
}

package security

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestNewVault_KeyLengths(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		if _, err := NewVault(make([]byte, n)); err != nil {
			t.Errorf("NewVault(%d bytes): %v", n, err)
		}
	}
	for _, n := range []int{0, 8, 15, 17, 31, 33, 64} {
		if _, err := NewVault(make([]byte, n)); !errors.Is(err, ErrInvalidKeyLength) {
			t.Errorf("NewVault(%d bytes) = %v, want ErrInvalidKeyLength", n, err)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := testVault(t)
	for _, s := range []string{"", "p", "s3cret-pa55word", strings.Repeat("long", 100), "unicode: пароль ✓"} {
		blob, err := v.Encrypt(s)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", s, err)
		}
		got, err := v.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != s {
			t.Errorf("round trip = %q, want %q", got, s)
		}
	}
}

func TestEncrypt_NonceFreshness(t *testing.T) {
	v := testVault(t)
	a, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	b, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	v := testVault(t)
	blob, err := v.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[len(raw)-1] ^= 0xff
	if _, err := v.Decrypt(base64.StdEncoding.EncodeToString(raw)); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt(tampered) = %v, want ErrDecrypt", err)
	}
}

func TestDecrypt_TruncatedAndGarbage(t *testing.T) {
	v := testVault(t)
	for _, blob := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		got, err := v.Decrypt(blob)
		if !errors.Is(err, ErrDecrypt) {
			t.Errorf("Decrypt(%q) err = %v, want ErrDecrypt", blob, err)
		}
		if got != "" {
			t.Errorf("Decrypt(%q) leaked %q on failure", blob, got)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	v1 := testVault(t)
	key2 := make([]byte, 32)
	key2[0] = 1
	v2, err := NewVault(key2)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := v1.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v2.Decrypt(blob); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt with wrong key = %v, want ErrDecrypt", err)
	}
}

func TestKeyFromConfig(t *testing.T) {
	key := make([]byte, 32)
	enc := base64.StdEncoding.EncodeToString(key)

	got, err := KeyFromConfig(enc)
	if err != nil || len(got) != 32 {
		t.Errorf("KeyFromConfig(plain) = %d bytes, err %v", len(got), err)
	}
	got, err = KeyFromConfig("base64:" + enc)
	if err != nil || len(got) != 32 {
		t.Errorf("KeyFromConfig(prefixed) = %d bytes, err %v", len(got), err)
	}
	if _, err := KeyFromConfig(""); err == nil {
		t.Error("KeyFromConfig(empty) should fail")
	}
	if _, err := KeyFromConfig("%%%not-base64%%%"); err == nil {
		t.Error("KeyFromConfig(garbage) should fail")
	}
}

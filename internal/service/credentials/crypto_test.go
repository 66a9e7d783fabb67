package credentials

import (
	"errors"
	"strings"
	"testing"

	"omnichat/internal/models"
)

func newTestCipher(t *testing.T) *secretCipher {
	t.Helper()
	c, err := newSecretCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	c := newTestCipher(t)

	secret := "sk-test-abcdefghijklmnop"
	blob, err := c.Encrypt(secret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if blob == secret {
		t.Fatal("ciphertext equals plaintext")
	}

	plain, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != secret {
		t.Fatalf("roundtrip = %q, want %q", plain, secret)
	}
}

func TestEncryptNonceFreshness(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := c.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same secret produced identical blobs")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := map[string]string{
		"not base64":     "%%%not-base64%%%",
		"too short":      "YWJj",
		"flipped suffix": blob[:len(blob)-4] + "AAAA",
	}
	for name, input := range cases {
		if _, err := c.Decrypt(input); !errors.Is(err, models.ErrDecryption) {
			t.Errorf("%s: err = %v, want ErrDecryption", name, err)
		}
	}

	// A blob sealed under a different key must not open.
	other, err := newSecretCipher([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("other cipher: %v", err)
	}
	if _, err := other.Decrypt(blob); !errors.Is(err, models.ErrDecryption) {
		t.Fatalf("foreign key decrypt err = %v, want ErrDecryption", err)
	}
}

func TestDecodeKey(t *testing.T) {
	if _, err := decodeKey("too short"); err == nil {
		t.Fatal("short key accepted")
	}
	if _, err := decodeKey(strings.Repeat("a", 32)); err != nil {
		t.Fatalf("raw 32-byte key rejected: %v", err)
	}
	// base64 of 32 bytes
	if _, err := decodeKey("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="); err != nil {
		t.Fatalf("base64 key rejected: %v", err)
	}
}

func TestMask(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"sk-abcdefghijkl", "sk-a*******ijkl"},
	}
	for _, tc := range cases {
		if got := Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

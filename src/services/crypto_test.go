package services

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

const testEncryptKey = "test key"

func TestNewEventCrypto_EmptyKey(t *testing.T) {
	c, err := NewEventCrypto("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil crypto for empty key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := NewEventCrypto(testEncryptKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plaintext := []byte(`{"schema":"2.0","header":{"event_id":"e1"}}`)

	encrypted, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted != plaintext: got %q, want %q", decrypted, plaintext)
	}
}

func TestDecrypt_ExternallyEncrypted(t *testing.T) {
	// Encrypt the way the Lark platform does, independent of EventCrypto.Encrypt
	key := sha256.Sum256([]byte(testEncryptKey))
	block, _ := aes.NewCipher(key[:])
	iv := bytes.Repeat([]byte{7}, aes.BlockSize)
	plaintext := []byte("hello world")
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{5}, 5)...)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	encoded := base64.StdEncoding.EncodeToString(append(iv, ciphertext...))

	c, _ := NewEventCrypto(testEncryptKey)
	decrypted, err := c.Decrypt(encoded)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if string(decrypted) != "hello world" {
		t.Fatalf("got %q", decrypted)
	}
}

func TestEncrypt_UniqueIVs(t *testing.T) {
	c, _ := NewEventCrypto(testEncryptKey)

	a, _ := c.Encrypt([]byte("same data"))
	b, _ := c.Encrypt([]byte("same data"))
	if a == b {
		t.Fatal("two encryptions of same data should differ")
	}
}

func TestDecrypt_Errors(t *testing.T) {
	c, _ := NewEventCrypto(testEncryptKey)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"not block aligned", base64.StdEncoding.EncodeToString(make([]byte, 40))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.input); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1, _ := NewEventCrypto(testEncryptKey)
	c2, _ := NewEventCrypto("another key")

	encrypted, _ := c1.Encrypt([]byte("secret data"))
	decrypted, err := c2.Decrypt(encrypted)
	if err == nil && bytes.Equal(decrypted, []byte("secret data")) {
		t.Fatal("wrong key should not recover plaintext")
	}
}

func TestNilEventCrypto(t *testing.T) {
	var c *EventCrypto

	if _, err := c.Decrypt("abc"); !errors.Is(err, ErrDecryptionDisabled) {
		t.Fatalf("expected ErrDecryptionDisabled, got %v", err)
	}
	if !c.VerifySignature("1", "n", []byte("body"), "anything") {
		t.Fatal("nil crypto should accept every signature")
	}
}

func TestSignature(t *testing.T) {
	c, _ := NewEventCrypto(testEncryptKey)
	body := []byte(`{"encrypt":"abc"}`)

	sum := sha256.Sum256([]byte("1700000000" + "nonce" + testEncryptKey + string(body)))
	want := hex.EncodeToString(sum[:])

	if got := c.Signature("1700000000", "nonce", body); got != want {
		t.Fatalf("signature = %s, want %s", got, want)
	}
	if !c.VerifySignature("1700000000", "nonce", body, want) {
		t.Fatal("expected valid signature")
	}
	if c.VerifySignature("1700000001", "nonce", body, want) {
		t.Fatal("expected invalid signature for different timestamp")
	}
}

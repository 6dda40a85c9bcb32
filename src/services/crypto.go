package services

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrDecryptionDisabled is returned when an encrypted event arrives but no
// encrypt key is configured
var ErrDecryptionDisabled = errors.New("received encrypted event but LARK_ENCRYPT_KEY is not set")

// EventCrypto handles Lark event encryption (AES-256-CBC) and request signatures.
// If nil, Decrypt fails with ErrDecryptionDisabled and signatures are not checked.
type EventCrypto struct {
	encryptKey string
	block      cipher.Block
}

// NewEventCrypto creates an EventCrypto from the app's encrypt key.
// Returns nil if encryptKey is empty (encryption disabled).
func NewEventCrypto(encryptKey string) (*EventCrypto, error) {
	if encryptKey == "" {
		return nil, nil
	}

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &EventCrypto{encryptKey: encryptKey, block: block}, nil
}

// Decrypt decodes the base64 "encrypt" field of an event body.
// Layout is iv (16 bytes) || ciphertext, PKCS#7 padded.
func (c *EventCrypto) Decrypt(encrypted string) ([]byte, error) {
	if c == nil {
		return nil, ErrDecryptionDisabled
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted payload: not valid base64: %w", err)
	}

	bs := c.block.BlockSize()
	if len(raw) < 2*bs || len(raw)%bs != 0 {
		return nil, fmt.Errorf("invalid encrypted payload: bad length %d", len(raw))
	}

	iv, ciphertext := raw[:bs], raw[bs:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, bs)
}

// Encrypt produces the base64 "encrypt" field for plaintext with a random IV
func (c *EventCrypto) Encrypt(plaintext []byte) (string, error) {
	if c == nil {
		return "", ErrDecryptionDisabled
	}

	bs := c.block.BlockSize()
	padded := pkcs7Pad(plaintext, bs)

	out := make([]byte, bs+len(padded))
	if _, err := io.ReadFull(rand.Reader, out[:bs]); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(c.block, out[:bs]).CryptBlocks(out[bs:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Signature computes the X-Lark-Signature value for a request
func (c *EventCrypto) Signature(timestamp, nonce string, body []byte) string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(c.encryptKey))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches the request.
// A nil EventCrypto accepts every request.
func (c *EventCrypto) VerifySignature(timestamp, nonce string, body []byte, signature string) bool {
	if c == nil {
		return true
	}
	expected := c.Signature(timestamp, nonce, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("invalid padding: empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

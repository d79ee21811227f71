package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Separator splits the IV from the ciphertext in the stored string.
const Separator = "|.|"

// keySalt is fixed so the same configured key always derives the same
// AES key; rows encrypted by a previous process stay readable.
const keySalt = "eventhos-relay"

const ivSize = 16

// Codec encrypts and decrypts strings for at-rest storage using
// AES-256-CTR. The stored form is "<ivHex>|.|<cipherHex>" with a fresh
// random IV per call. CTR carries no authentication tag, so a successful
// Decrypt is not proof the ciphertext was untampered.
type Codec struct {
	key []byte
}

// NewCodec derives the 32-byte AES key from the configured secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Encrypt encrypts plaintext and returns the stored form.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(out, []byte(plaintext))

	return hex.EncodeToString(iv) + Separator + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It fails when the separator is missing or
// the IV is not valid hex of the expected length.
func (c *Codec) Decrypt(stored string) (string, error) {
	ivHex, cipherHex, found := strings.Cut(stored, Separator)
	if !found {
		return "", fmt.Errorf("stored value is missing the %q separator", Separator)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("invalid IV: %w", err)
	}
	if len(iv) != ivSize {
		return "", fmt.Errorf("invalid IV length: expected %d bytes, got %d", ivSize, len(iv))
	}

	data, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)

	return string(out), nil
}

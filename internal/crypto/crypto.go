// Package crypto seals profile credentials at rest with a master password.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key size in bytes
	KeySize = 32
	// NonceSize is the GCM nonce size
	NonceSize = 12
	// SaltSize is the argon2 salt size
	SaltSize = 16
	// MinPasswordLength is the shortest accepted master password
	MinPasswordLength = 12

	// sealed values carry a version prefix so the KDF parameters can change later
	sealPrefix = "v1$"

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrWrongPassword is returned when a sealed value cannot be opened with the box password
var ErrWrongPassword = errors.New("wrong master password or corrupted data")

// Box seals and opens values with a key derived from a master password
type Box struct {
	password []byte
}

// NewBox creates a box after checking the password meets the minimum requirements
func NewBox(password string) (*Box, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	return &Box{password: []byte(password)}, nil
}

func (b *Box) key(salt []byte) []byte {
	return argon2.IDKey(b.password, salt, argonTime, argonMemory, argonThreads, KeySize)
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := b.key(salt)
	defer SecureZero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with AES-256-GCM. The result is printable.
func (b *Box) Seal(plaintext []byte) (string, error) {
	buf := make([]byte, SaltSize+NonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt, nonce := buf[:SaltSize], buf[SaltSize:]

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(buf, nonce, plaintext, []byte(sealPrefix))
	return sealPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (b *Box) Open(sealed string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed, sealPrefix)
	if !ok {
		return nil, fmt.Errorf("unsupported sealed value format")
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(raw) <= SaltSize+NonceSize {
		return nil, fmt.Errorf("sealed value too short: %d bytes", len(raw))
	}

	salt, nonce, ciphertext := raw[:SaltSize], raw[SaltSize:SaltSize+NonceSize], raw[SaltSize+NonceSize:]
	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(sealPrefix))
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

// SealString is Seal for strings
func (b *Box) SealString(plaintext string) (string, error) {
	return b.Seal([]byte(plaintext))
}

// Verifier returns a sealed marker that Verify accepts only with the same password
func (b *Box) Verifier() (string, error) {
	return b.SealString(verifierText)
}

// Verify reports whether verifier was produced by a box with the same password
func (b *Box) Verify(verifier string) bool {
	got, err := b.Open(verifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, []byte(verifierText)) == 1
}

// Close wipes the password from memory. The box is unusable afterwards.
func (b *Box) Close() {
	SecureZero(b.password)
	b.password = nil
}

const verifierText = "datocms-mcp-master-password"

// ValidatePassword checks the minimum master password requirements
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// SecureZero overwrites a sensitive byte slice
func SecureZero(data []byte) {
	clear(data)
}

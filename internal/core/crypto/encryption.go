// Package crypto seals deployer signing keys at rest and derives the
// deployer identity from them.
// This is part of the Functional Core - all functions are pure with no I/O
// apart from reading random bytes for salts and nonces.
//
// Sealed keys are AES-256-GCM ciphertext under a key derived from a
// passphrase with scrypt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/scrypt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when the sealed payload is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrDecryptionFailed is returned when decryption fails (wrong passphrase or corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrEmptyPassphrase is returned when sealing or opening without a passphrase.
	ErrEmptyPassphrase = errors.New("passphrase is required")

	// ErrInvalidPrivateKey is returned when a signing key cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// =============================================================================
// Key Derivation
// =============================================================================

const (
	// sealedPrefix tags the sealed format so it can evolve.
	sealedPrefix = "v1:"
	saltSize     = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keySize = 32
)

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using
// scrypt. The same passphrase and salt always produce the same key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
}

// =============================================================================
// AES-256-GCM Encryption
// =============================================================================

// Encrypt encrypts plaintext using AES-256-GCM with the provided key.
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) < keySize {
		return nil, ErrKeyTooShort
	}
	block, err := aes.NewCipher(key[:keySize])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// =============================================================================
// Sealed Keys
// =============================================================================

// Seal encrypts plaintext under a passphrase and returns a printable string
// suitable for a config file or environment variable.
//
// Format: "v1:" + base64(salt (16 bytes) || nonce || ciphertext || tag)
func Seal(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	ct, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(append(salt, ct...)), nil
}

// Open reverses Seal.
func Open(sealed, passphrase string) ([]byte, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(sealed), sealedPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidCiphertext, sealedPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) <= saltSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}
	key, err := DeriveKey(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	return Decrypt(raw[saltSize:], key)
}

// =============================================================================
// Signing Key Utilities
// =============================================================================

// ParsePrivateKey parses a hex secp256k1 private key, with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return key, nil
}

// AddressOf returns the checksummed account address of a hex private key.
// This is the deployer identity recorded in the state document.
func AddressOf(hexKey string) (string, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return "", err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// GeneratePrivateKey creates a new random signing key and returns it as hex
// with a 0x prefix.
func GeneratePrivateKey() (string, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "0x" + fmt.Sprintf("%x", ethcrypto.FromECDSA(key)), nil
}
